package domain

import "time"

// Wizard steps, strictly linear.
const (
	StepDatesAndGuests  = 1
	StepRoomSelection   = 2
	StepGuestAndDetails = 3
	StepConfirmation    = 4
)

// WizardSession is one live reservation wizard: the accumulating draft,
// the current step, lookup lists loaded at mount, and the selection
// registers. Gen increases on every draft mutation or selection; an
// async search/submit captures Gen at launch and its result is dropped
// if the counter moved meanwhile.
type WizardSession struct {
	ID      string
	HotelID string
	Step    int
	Draft   DraftReservation

	// Lookup lists, loaded once at mount.
	Guests    []Guest
	RoomTypes []RoomType

	// Candidate rooms from the last search; nil until the first
	// search, possibly empty afterwards (a valid state).
	Rooms []AvailableRoom

	// Selection registers.
	SelectedRoom *AvailableRoom

	Gen        uint64
	Searching  bool
	Submitting bool

	LastActive time.Time
}

// SelectedGuest resolves the guest register from the draft and the
// lookup list. Nil when no guest is chosen.
func (w *WizardSession) SelectedGuest() *Guest {
	if w.Draft.GuestID == "" {
		return nil
	}
	for i := range w.Guests {
		if w.Guests[i].ID == w.Draft.GuestID {
			return &w.Guests[i]
		}
	}
	return nil
}

func (w *WizardSession) Touch(now time.Time) { w.LastActive = now }
