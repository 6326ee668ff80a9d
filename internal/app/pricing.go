package app

import (
	"time"

	"github.com/danielmarv/hms-front-sub002/internal/domain"
)

// QuoteInput carries everything the price projection depends on.
// Negative monetary inputs are normalized to 0: mid-edit garbage is a
// transient state, not an error.
type QuoteInput struct {
	BasePricePerNight float64
	CheckIn           time.Time
	CheckOut          time.Time
	TaxRatePercent    float64
	DiscountAmount    float64
}

// Quote computes the pricing breakdown. Pure and synchronous; callers
// recompute it on every read so it can never go stale. When checkOut
// is not strictly after checkIn all monetary fields are 0 — date
// ordering is validated at the step-1 gate, not here.
func Quote(in QuoteInput) domain.PricingBreakdown {
	nights := Nights(in.CheckIn, in.CheckOut)
	if nights <= 0 {
		return domain.PricingBreakdown{}
	}

	base := in.BasePricePerNight
	if base < 0 {
		base = 0
	}
	rate := in.TaxRatePercent
	if rate < 0 {
		rate = 0
	}
	discount := in.DiscountAmount
	if discount < 0 {
		discount = 0
	}

	subtotal := base * float64(nights)
	tax := subtotal * rate / 100
	total := subtotal + tax - discount
	if total < 0 {
		total = 0
	}
	return domain.PricingBreakdown{
		Nights:         nights,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		Total:          total,
	}
}

// Nights is the whole-day difference checkOut-checkIn, floored, never
// negative. Zero when either date is unset.
func Nights(checkIn, checkOut time.Time) int {
	if checkIn.IsZero() || checkOut.IsZero() {
		return 0
	}
	n := int(checkOut.Sub(checkIn) / (24 * time.Hour))
	if n < 0 {
		return 0
	}
	return n
}
