package domain

import "time"

type BookingSource string

const (
	SourceDirect  BookingSource = "direct"
	SourceWebsite BookingSource = "website"
	SourcePhone   BookingSource = "phone"
	SourceEmail   BookingSource = "email"
	SourceWalkIn  BookingSource = "walk_in"
	SourceAgent   BookingSource = "agent"
	SourceOTA     BookingSource = "ota"
	SourceOther   BookingSource = "other"
)

func ValidSource(s BookingSource) bool {
	switch s {
	case SourceDirect, SourceWebsite, SourcePhone, SourceEmail,
		SourceWalkIn, SourceAgent, SourceOTA, SourceOther:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

func ValidPayment(p PaymentStatus) bool {
	return p == PaymentPending || p == PaymentPartial || p == PaymentPaid
}

// DraftReservation accumulates across the wizard steps. Dates are
// day-granular (truncated to midnight UTC); zero time means "unset"
// and serializes as the zero timestamp, which clients treat as empty.
type DraftReservation struct {
	GuestID          string        `json:"guest_id,omitempty"`
	RoomID           string        `json:"room_id,omitempty"`
	CheckIn          time.Time     `json:"check_in"`
	CheckOut         time.Time     `json:"check_out"`
	OccupantCount    int           `json:"occupant_count"`
	BookingSource    BookingSource `json:"booking_source"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	TaxRatePercent   float64       `json:"tax_rate_percent"`
	DiscountAmount   float64       `json:"discount_amount"`
	SpecialRequests  string        `json:"special_requests,omitempty"`
	GroupBooking     bool          `json:"group_booking,omitempty"`
	GroupID          string        `json:"group_id,omitempty"`
	CorporateBooking bool          `json:"corporate_booking,omitempty"`
	CorporateID      string        `json:"corporate_id,omitempty"`
}

// NewDraft returns the step-1 defaults.
func NewDraft() DraftReservation {
	return DraftReservation{
		OccupantCount:  1,
		BookingSource:  SourceDirect,
		PaymentStatus:  PaymentPending,
		TaxRatePercent: 10,
	}
}

// DraftUpdate is a typed partial update: nil fields are left untouched.
type DraftUpdate struct {
	CheckIn          *time.Time
	CheckOut         *time.Time
	OccupantCount    *int
	BookingSource    *BookingSource
	PaymentStatus    *PaymentStatus
	TaxRatePercent   *float64
	DiscountAmount   *float64
	SpecialRequests  *string
	GroupBooking     *bool
	GroupID          *string
	CorporateBooking *bool
	CorporateID      *string
}

// RoomSearchCriteria is built fresh from the draft on every search.
type RoomSearchCriteria struct {
	CheckIn       time.Time
	CheckOut      time.Time
	OccupantCount int
	RoomTypeID    string
	Floor         string
	Building      string
	View          string
}

// PricingBreakdown is a pure projection of the draft plus the selected
// room; it is recomputed on every read and never stored.
type PricingBreakdown struct {
	Nights         int     `json:"nights"`
	Subtotal       float64 `json:"subtotal"`
	TaxAmount      float64 `json:"tax_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	Total          float64 `json:"total"`
}
