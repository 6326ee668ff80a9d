package pms

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/danielmarv/hms-front-sub002/internal/adapters/observability"
	"github.com/danielmarv/hms-front-sub002/internal/domain"
)

// Client talks to the property-management REST API that owns rooms,
// guests, room types and bookings.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API ----

func (c *Client) SearchRooms(ctx context.Context, hotelID string, crit domain.RoomSearchCriteria) ([]domain.AvailableRoom, error) {
	q := url.Values{}
	q.Set("check_in", crit.CheckIn.Format("2006-01-02"))
	q.Set("check_out", crit.CheckOut.Format("2006-01-02"))
	q.Set("occupants", strconv.Itoa(crit.OccupantCount))
	if crit.RoomTypeID != "" {
		q.Set("room_type_id", crit.RoomTypeID)
	}
	if crit.Floor != "" {
		q.Set("floor", crit.Floor)
	}
	if crit.Building != "" {
		q.Set("building", crit.Building)
	}
	if crit.View != "" {
		q.Set("view", crit.View)
	}
	u := fmt.Sprintf("%s/v1/hotels/%s/rooms/available?%s", c.base, hotelID, q.Encode())
	var out []domain.AvailableRoom
	return out, c.do(ctx, http.MethodGet, "rooms_available", u, nil, "", &out)
}

func (c *Client) ListGuests(ctx context.Context, hotelID string, gq domain.GuestQuery) ([]domain.Guest, error) {
	q := url.Values{}
	if gq.Limit > 0 {
		q.Set("limit", strconv.Itoa(gq.Limit))
	}
	if gq.Q != "" {
		q.Set("q", gq.Q)
	}
	u := fmt.Sprintf("%s/v1/hotels/%s/guests?%s", c.base, hotelID, q.Encode())
	var out []domain.Guest
	return out, c.do(ctx, http.MethodGet, "guests", u, nil, "", &out)
}

func (c *Client) ListRoomTypes(ctx context.Context, hotelID string) ([]domain.RoomType, error) {
	u := fmt.Sprintf("%s/v1/hotels/%s/room-types", c.base, hotelID)
	var out []domain.RoomType
	return out, c.do(ctx, http.MethodGet, "room_types", u, nil, "", &out)
}

func (c *Client) CreateBooking(ctx context.Context, hotelID string, d domain.DraftReservation, idemKey string) (domain.BookingRecord, error) {
	u := fmt.Sprintf("%s/v1/hotels/%s/bookings", c.base, hotelID)
	body := createBookingRequest{
		GuestID:          d.GuestID,
		RoomID:           d.RoomID,
		CheckIn:          d.CheckIn.Format("2006-01-02"),
		CheckOut:         d.CheckOut.Format("2006-01-02"),
		OccupantCount:    d.OccupantCount,
		BookingSource:    string(d.BookingSource),
		PaymentStatus:    string(d.PaymentStatus),
		TaxRatePercent:   d.TaxRatePercent,
		DiscountAmount:   d.DiscountAmount,
		SpecialRequests:  d.SpecialRequests,
		GroupBooking:     d.GroupBooking,
		GroupID:          d.GroupID,
		CorporateBooking: d.CorporateBooking,
		CorporateID:      d.CorporateID,
	}
	var out domain.BookingRecord
	return out, c.do(ctx, http.MethodPost, "create_booking", u, body, idemKey, &out)
}

type createBookingRequest struct {
	GuestID          string  `json:"guest_id"`
	RoomID           string  `json:"room_id"`
	CheckIn          string  `json:"check_in"`
	CheckOut         string  `json:"check_out"`
	OccupantCount    int     `json:"occupant_count"`
	BookingSource    string  `json:"booking_source"`
	PaymentStatus    string  `json:"payment_status"`
	TaxRatePercent   float64 `json:"tax_rate_percent"`
	DiscountAmount   float64 `json:"discount_amount"`
	SpecialRequests  string  `json:"special_requests,omitempty"`
	GroupBooking     bool    `json:"group_booking,omitempty"`
	GroupID          string  `json:"group_id,omitempty"`
	CorporateBooking bool    `json:"corporate_booking,omitempty"`
	CorporateID      string  `json:"corporate_id,omitempty"`
}

// ---- Errors ----

var (
	ErrNotFound     = errors.New("pms: not found")
	ErrUnauthorized = errors.New("pms: unauthorized")
	ErrForbidden    = errors.New("pms: forbidden")
)

// Error is a non-retryable upstream rejection (validation failures,
// conflicts). Message is the upstream's own wording and is shown to
// the user verbatim when present.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("pms: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("pms: status %d", e.Status)
}

func (e *Error) UpstreamMessage() string { return e.Message }

// ---- Internals ----

// do performs one logical request with client-side rate limiting and
// bounded retries on 429/transient 5xx, honoring Retry-After. POSTs
// carry the idempotency key so a retried create cannot double-book.
func (c *Client) do(ctx context.Context, method, endpoint, u string, body any, idemKey string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// fresh request each attempt
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-Key", c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "hms-back-office/1.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idemKey != "" {
			req.Header.Set("Idempotency-Key", idemKey)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.ObserveExternal("pms", endpoint, 0, time.Since(start))
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("pms", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// 4xx rejection: pull the upstream message for the user
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &Error{Status: resp.StatusCode, Message: extractMessage(b)}
		}
	}

	return lastErr
}

// extractMessage pulls "message" (or "error") out of a JSON error
// body, falling back to the trimmed raw body.
func extractMessage(b []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(b, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(b))
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential delay (200ms, 400ms, 800ms...) with
// up to +50% jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}

var _ domain.PMSClient = (*Client)(nil)
