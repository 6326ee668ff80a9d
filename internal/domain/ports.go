package domain

import "context"

// PMSClient is the upstream property-management API. All entity data
// (rooms, guests, room types, bookings) is owned by it; this service
// only reads and submits.
type PMSClient interface {
	SearchRooms(ctx context.Context, hotelID string, c RoomSearchCriteria) ([]AvailableRoom, error)
	ListGuests(ctx context.Context, hotelID string, q GuestQuery) ([]Guest, error)
	ListRoomTypes(ctx context.Context, hotelID string) ([]RoomType, error)
	// CreateBooking sends the draft with a per-attempt idempotency key.
	CreateBooking(ctx context.Context, hotelID string, d DraftReservation, idemKey string) (BookingRecord, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// SessionStore holds live wizard sessions. Update and View both run
// fn under the store's lock so reads and mutations are race-free
// across handlers; fn must not retain the session past its return.
type SessionStore interface {
	Put(s *WizardSession)
	View(id string, fn func(*WizardSession)) error
	Update(id string, fn func(*WizardSession) error) error
	Delete(id string)
}
