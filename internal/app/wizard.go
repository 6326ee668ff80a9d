package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danielmarv/hms-front-sub002/internal/domain"
)

var (
	// ErrBusy means the same async operation is already in flight for
	// this session; the caller retries after it settles.
	ErrBusy = errors.New("operation already in flight")

	// ErrStaleResult means an async call resolved after the wizard
	// moved on; its result was discarded.
	ErrStaleResult = errors.New("result discarded: wizard changed while the call was in flight")
)

// CollaboratorError wraps a failed upstream call. Message carries the
// upstream's own wording when it sent one, surfaced verbatim to the
// user; otherwise callers fall back to a generic notice.
type CollaboratorError struct {
	Op      string
	Message string
	Err     error
}

func (e *CollaboratorError) Error() string {
	if e.Message != "" {
		return e.Op + " failed: " + e.Message
	}
	return e.Op + " failed"
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// SearchFilters are the optional room-search refinements on top of the
// draft's dates and occupant count.
type SearchFilters struct {
	RoomTypeID string `json:"room_type_id,omitempty"`
	Floor      string `json:"floor,omitempty"`
	Building   string `json:"building,omitempty"`
	View       string `json:"view,omitempty"`
}

// WizardSnapshot is what the wizard emits to its hosting shell after
// every transition. Pricing is recomputed on each snapshot, never
// cached, so it cannot go stale.
type WizardSnapshot struct {
	SessionID     string                  `json:"session_id"`
	HotelID       string                  `json:"hotel_id"`
	Step          int                     `json:"step"`
	Draft         domain.DraftReservation `json:"draft"`
	Pricing       domain.PricingBreakdown `json:"pricing"`
	Rooms         []domain.AvailableRoom  `json:"rooms,omitempty"`
	SelectedRoom  *domain.AvailableRoom   `json:"selected_room,omitempty"`
	SelectedGuest *domain.Guest           `json:"selected_guest,omitempty"`
	Guests        []domain.Guest          `json:"guests,omitempty"`
	RoomTypes     []domain.RoomType       `json:"room_types,omitempty"`
	Searching     bool                    `json:"searching"`
	Submitting    bool                    `json:"submitting"`
}

// WizardService drives reservation wizard sessions: gated forward
// transitions, free backward navigation, one in-flight search and one
// in-flight submit per session.
type WizardService struct {
	pms      domain.PMSClient
	sessions domain.SessionStore
	catalog  *CatalogService
}

func NewWizardService(pms domain.PMSClient, sessions domain.SessionStore, catalog *CatalogService) *WizardService {
	return &WizardService{pms: pms, sessions: sessions, catalog: catalog}
}

// Start mounts a fresh wizard for the given hotel: loads the guest and
// room-type lookup lists once, then registers a session at step 1 with
// the draft at defaults.
func (s *WizardService) Start(ctx context.Context, hotelID string) (WizardSnapshot, error) {
	if hotelID == "" {
		return WizardSnapshot{}, domain.ErrNoActiveHotel
	}
	guests, err := s.catalog.ListGuests(ctx, hotelID, domain.GuestQuery{Limit: s.catalog.GuestPageSize()})
	if err != nil {
		return WizardSnapshot{}, &CollaboratorError{Op: "guest lookup", Err: err}
	}
	roomTypes, err := s.catalog.ListRoomTypes(ctx, hotelID)
	if err != nil {
		return WizardSnapshot{}, &CollaboratorError{Op: "room-type lookup", Err: err}
	}

	ws := &domain.WizardSession{
		ID:         uuid.NewString(),
		HotelID:    hotelID,
		Step:       domain.StepDatesAndGuests,
		Draft:      domain.NewDraft(),
		Guests:     guests,
		RoomTypes:  roomTypes,
		LastActive: time.Now(),
	}
	s.sessions.Put(ws)
	log.Info().Str("session", ws.ID).Str("hotel", hotelID).Msg("wizard started")
	return snapshot(ws), nil
}

// Snapshot returns the current emitted state of a session. The copy
// is built under the store lock so a poll racing a concurrent update
// never observes a half-applied session.
func (s *WizardService) Snapshot(id string) (WizardSnapshot, error) {
	var snap WizardSnapshot
	if err := s.sessions.View(id, func(ws *domain.WizardSession) {
		snap = snapshot(ws)
	}); err != nil {
		return WizardSnapshot{}, err
	}
	return snap, nil
}

// UpdateDraft applies a typed partial update. Validation runs first
// over the whole update; on any field failure nothing is applied and
// the step does not change. A selected room deliberately survives a
// date change; pricing is a projection so it follows the new dates.
func (s *WizardService) UpdateDraft(id string, upd domain.DraftUpdate) (WizardSnapshot, error) {
	err := s.sessions.Update(id, func(ws *domain.WizardSession) error {
		fe := validateUpdate(upd)
		if len(fe) > 0 {
			return fe
		}
		applyUpdate(&ws.Draft, upd)
		ws.Gen++
		ws.Touch(time.Now())
		return nil
	})
	if err != nil {
		return s.failSnapshot(id, err)
	}
	return s.Snapshot(id)
}

// SearchRooms is the 1→2 transition: validates the step-1 gate, builds
// fresh criteria from the draft plus optional filters, and queries the
// availability collaborator. Zero results still advance to step 2; a
// failed call leaves the wizard on step 1 for a manual retry. Results
// arriving after the draft changed are discarded.
func (s *WizardService) SearchRooms(ctx context.Context, id string, filters SearchFilters) (WizardSnapshot, error) {
	var (
		crit    domain.RoomSearchCriteria
		gen     uint64
		hotelID string
	)
	err := s.sessions.Update(id, func(ws *domain.WizardSession) error {
		if ws.Step != domain.StepDatesAndGuests {
			return domain.FieldErrors{"step": "room search is only available on step 1"}
		}
		if ws.Searching {
			return ErrBusy
		}
		if fe := validateStepOne(ws.Draft); len(fe) > 0 {
			return fe
		}
		ws.Searching = true
		ws.Touch(time.Now())
		gen = ws.Gen
		hotelID = ws.HotelID
		crit = domain.RoomSearchCriteria{
			CheckIn:       ws.Draft.CheckIn,
			CheckOut:      ws.Draft.CheckOut,
			OccupantCount: ws.Draft.OccupantCount,
			RoomTypeID:    filters.RoomTypeID,
			Floor:         filters.Floor,
			Building:      filters.Building,
			View:          filters.View,
		}
		return nil
	})
	if err != nil {
		return s.failSnapshot(id, err)
	}

	rooms, searchErr := s.pms.SearchRooms(ctx, hotelID, crit)

	stale := false
	_ = s.sessions.Update(id, func(ws *domain.WizardSession) error {
		ws.Searching = false
		if searchErr != nil {
			return nil
		}
		if ws.Gen != gen || ws.Step != domain.StepDatesAndGuests {
			stale = true
			return nil
		}
		if rooms == nil {
			rooms = []domain.AvailableRoom{}
		}
		ws.Rooms = rooms
		ws.Step = domain.StepRoomSelection
		ws.Touch(time.Now())
		return nil
	})

	if searchErr != nil {
		log.Warn().Str("session", id).Err(searchErr).Msg("room search failed")
		return s.failSnapshot(id, &CollaboratorError{Op: "room search", Message: upstreamMessage(searchErr), Err: searchErr})
	}
	if stale {
		log.Warn().Str("session", id).Uint64("gen", gen).Msg("stale room search result dropped")
		return s.failSnapshot(id, ErrStaleResult)
	}
	return s.Snapshot(id)
}

// SelectRoom sets the room register from the current candidate list and
// records the room id on the draft. Advancing to step 3 is a separate
// Next call so the occupancy gate is always evaluated.
func (s *WizardService) SelectRoom(id, roomID string) (WizardSnapshot, error) {
	err := s.sessions.Update(id, func(ws *domain.WizardSession) error {
		if ws.Step < domain.StepRoomSelection {
			return domain.FieldErrors{"step": "search rooms before selecting one"}
		}
		for i := range ws.Rooms {
			if ws.Rooms[i].ID == roomID {
				room := ws.Rooms[i]
				ws.SelectedRoom = &room
				ws.Draft.RoomID = room.ID
				ws.Gen++
				ws.Touch(time.Now())
				return nil
			}
		}
		return domain.FieldErrors{"room_id": "room is not in the current result list"}
	})
	if err != nil {
		return s.failSnapshot(id, err)
	}
	return s.Snapshot(id)
}

// SelectGuest sets the guest register against the lookup list loaded
// at mount.
func (s *WizardService) SelectGuest(id, guestID string) (WizardSnapshot, error) {
	err := s.sessions.Update(id, func(ws *domain.WizardSession) error {
		found := false
		for i := range ws.Guests {
			if ws.Guests[i].ID == guestID {
				found = true
				break
			}
		}
		if !found {
			return domain.FieldErrors{"guest_id": "unknown guest"}
		}
		ws.Draft.GuestID = guestID
		ws.Gen++
		ws.Touch(time.Now())
		return nil
	})
	if err != nil {
		return s.failSnapshot(id, err)
	}
	return s.Snapshot(id)
}

// Next advances one step through the gated transitions 2→3 and 3→4.
// The 1→2 transition only happens through SearchRooms.
func (s *WizardService) Next(id string) (WizardSnapshot, error) {
	err := s.sessions.Update(id, func(ws *domain.WizardSession) error {
		switch ws.Step {
		case domain.StepDatesAndGuests:
			return domain.FieldErrors{"step": "search rooms to continue"}
		case domain.StepRoomSelection:
			if ws.SelectedRoom == nil {
				return domain.FieldErrors{"room_id": "select a room to continue"}
			}
			if ws.Draft.OccupantCount > ws.SelectedRoom.MaxOccupancy {
				return domain.FieldErrors{"occupant_count": fmt.Sprintf(
					"room %s sleeps at most %d", ws.SelectedRoom.Number, ws.SelectedRoom.MaxOccupancy)}
			}
			ws.Step = domain.StepGuestAndDetails
		case domain.StepGuestAndDetails:
			if ws.Draft.GuestID == "" {
				return domain.FieldErrors{"guest_id": "select a guest to continue"}
			}
			ws.Step = domain.StepConfirmation
		default:
			return domain.FieldErrors{"step": "already at confirmation"}
		}
		ws.Touch(time.Now())
		return nil
	})
	if err != nil {
		return s.failSnapshot(id, err)
	}
	return s.Snapshot(id)
}

// Back moves one step towards step 1. Never clears entered data; a
// previously selected room stays selected even if the dates change
// afterwards.
func (s *WizardService) Back(id string) (WizardSnapshot, error) {
	err := s.sessions.Update(id, func(ws *domain.WizardSession) error {
		if ws.Step > domain.StepDatesAndGuests {
			ws.Step--
		}
		ws.Touch(time.Now())
		return nil
	})
	if err != nil {
		return s.failSnapshot(id, err)
	}
	return s.Snapshot(id)
}

// Submit is the final transition. It re-checks completeness even
// though the earlier gates should guarantee it, sends exactly one
// createBooking call with a fresh idempotency token, and on success
// discards the session. On failure the draft stays on step 4 intact so
// the user can correct and resubmit; a result that arrives after the
// wizard changed is discarded.
func (s *WizardService) Submit(ctx context.Context, id string) (domain.BookingRecord, error) {
	var (
		draft   domain.DraftReservation
		gen     uint64
		hotelID string
	)
	err := s.sessions.Update(id, func(ws *domain.WizardSession) error {
		if ws.Step != domain.StepConfirmation {
			return domain.FieldErrors{"step": "review the reservation before confirming"}
		}
		if ws.Submitting {
			return ErrBusy
		}
		if fe := validateComplete(ws.Draft); len(fe) > 0 {
			return fe
		}
		ws.Submitting = true
		ws.Touch(time.Now())
		gen = ws.Gen
		hotelID = ws.HotelID
		draft = ws.Draft
		return nil
	})
	if err != nil {
		return domain.BookingRecord{}, err
	}

	idemKey := uuid.NewString()
	record, subErr := s.pms.CreateBooking(ctx, hotelID, draft, idemKey)

	stale := false
	applied := false
	_ = s.sessions.Update(id, func(ws *domain.WizardSession) error {
		ws.Submitting = false
		if subErr != nil {
			return nil
		}
		if ws.Gen != gen || ws.Step != domain.StepConfirmation {
			stale = true
			return nil
		}
		applied = true
		return nil
	})

	if subErr != nil {
		log.Warn().Str("session", id).Err(subErr).Msg("booking submission failed")
		return domain.BookingRecord{}, &CollaboratorError{Op: "booking", Message: upstreamMessage(subErr), Err: subErr}
	}
	if stale {
		// The booking exists upstream; only this wizard stopped caring.
		log.Warn().Str("session", id).Str("booking", record.ID).Msg("stale submit result dropped")
		return domain.BookingRecord{}, ErrStaleResult
	}
	if applied {
		s.sessions.Delete(id)
		log.Info().Str("session", id).Str("booking", record.ID).Str("idempotency_key", idemKey).Msg("booking created")
	}
	return record, nil
}

// Cancel discards a session explicitly.
func (s *WizardService) Cancel(id string) {
	s.sessions.Delete(id)
}

// failSnapshot keeps the emitted-state contract on validation
// failures: the wizard stays where it was, the error names the fields.
func (s *WizardService) failSnapshot(id string, err error) (WizardSnapshot, error) {
	snap, _ := s.Snapshot(id)
	return snap, err
}

// Slices carried over into the snapshot are only ever replaced
// wholesale on mutation, never written in place, so sharing their
// backing arrays past the lock is safe.
func snapshot(ws *domain.WizardSession) WizardSnapshot {
	return WizardSnapshot{
		SessionID:     ws.ID,
		HotelID:       ws.HotelID,
		Step:          ws.Step,
		Draft:         ws.Draft,
		Pricing:       pricingOf(ws),
		Rooms:         ws.Rooms,
		SelectedRoom:  ws.SelectedRoom,
		SelectedGuest: ws.SelectedGuest(),
		Guests:        ws.Guests,
		RoomTypes:     ws.RoomTypes,
		Searching:     ws.Searching,
		Submitting:    ws.Submitting,
	}
}

func pricingOf(ws *domain.WizardSession) domain.PricingBreakdown {
	base := 0.0
	if ws.SelectedRoom != nil {
		base = ws.SelectedRoom.RoomType.BasePricePerNight
	}
	return Quote(QuoteInput{
		BasePricePerNight: base,
		CheckIn:           ws.Draft.CheckIn,
		CheckOut:          ws.Draft.CheckOut,
		TaxRatePercent:    ws.Draft.TaxRatePercent,
		DiscountAmount:    ws.Draft.DiscountAmount,
	})
}

// ---- validation gates ----

func validateStepOne(d domain.DraftReservation) domain.FieldErrors {
	fe := domain.NewFieldErrors()
	if d.CheckIn.IsZero() {
		fe.Add("check_in", "check-in date is required")
	}
	if d.CheckOut.IsZero() {
		fe.Add("check_out", "check-out date is required")
	}
	if !d.CheckIn.IsZero() && !d.CheckOut.IsZero() && !d.CheckIn.Before(d.CheckOut) {
		fe.Add("check_out", "check-out must be after check-in")
	}
	if d.OccupantCount < 1 {
		fe.Add("occupant_count", "at least one occupant is required")
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func validateComplete(d domain.DraftReservation) domain.FieldErrors {
	fe := domain.NewFieldErrors()
	if d.GuestID == "" {
		fe.Add("guest_id", "guest is required")
	}
	if d.RoomID == "" {
		fe.Add("room_id", "room is required")
	}
	if d.CheckIn.IsZero() {
		fe.Add("check_in", "check-in date is required")
	}
	if d.CheckOut.IsZero() {
		fe.Add("check_out", "check-out date is required")
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func validateUpdate(u domain.DraftUpdate) domain.FieldErrors {
	fe := domain.NewFieldErrors()
	if u.OccupantCount != nil && *u.OccupantCount < 1 {
		fe.Add("occupant_count", "must be a positive integer")
	}
	if u.TaxRatePercent != nil && *u.TaxRatePercent < 0 {
		fe.Add("tax_rate_percent", "must not be negative")
	}
	if u.DiscountAmount != nil && *u.DiscountAmount < 0 {
		fe.Add("discount_amount", "must not be negative")
	}
	if u.BookingSource != nil && !domain.ValidSource(*u.BookingSource) {
		fe.Add("booking_source", "unknown booking source")
	}
	if u.PaymentStatus != nil && !domain.ValidPayment(*u.PaymentStatus) {
		fe.Add("payment_status", "unknown payment status")
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func applyUpdate(d *domain.DraftReservation, u domain.DraftUpdate) {
	if u.CheckIn != nil {
		d.CheckIn = u.CheckIn.UTC().Truncate(24 * time.Hour)
	}
	if u.CheckOut != nil {
		d.CheckOut = u.CheckOut.UTC().Truncate(24 * time.Hour)
	}
	if u.OccupantCount != nil {
		d.OccupantCount = *u.OccupantCount
	}
	if u.BookingSource != nil {
		d.BookingSource = *u.BookingSource
	}
	if u.PaymentStatus != nil {
		d.PaymentStatus = *u.PaymentStatus
	}
	if u.TaxRatePercent != nil {
		d.TaxRatePercent = *u.TaxRatePercent
	}
	if u.DiscountAmount != nil {
		d.DiscountAmount = *u.DiscountAmount
	}
	if u.SpecialRequests != nil {
		d.SpecialRequests = *u.SpecialRequests
	}
	if u.GroupBooking != nil {
		d.GroupBooking = *u.GroupBooking
	}
	if u.GroupID != nil {
		d.GroupID = *u.GroupID
	}
	if u.CorporateBooking != nil {
		d.CorporateBooking = *u.CorporateBooking
	}
	if u.CorporateID != nil {
		d.CorporateID = *u.CorporateID
	}
}

// upstreamMessage extracts a verbatim message from a typed upstream
// error, empty when there is none worth showing.
func upstreamMessage(err error) string {
	var m interface{ UpstreamMessage() string }
	if errors.As(err, &m) {
		return m.UpstreamMessage()
	}
	return ""
}
