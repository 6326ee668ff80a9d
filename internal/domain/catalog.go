package domain

import "time"

// Read models owned by the upstream PMS; this service only reads them.

type RoomType struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	BasePricePerNight float64 `json:"base_price_per_night"`
}

type AvailableRoom struct {
	ID           string   `json:"id"`
	Number       string   `json:"number"`
	Floor        string   `json:"floor"`
	Building     string   `json:"building"`
	View         string   `json:"view"`
	MaxOccupancy int      `json:"max_occupancy"`
	Amenities    []string `json:"amenities"`
	RoomType     RoomType `json:"room_type"`
}

type Guest struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	VIP      bool   `json:"vip"`
}

type GuestQuery struct {
	Limit int
	Q     string
}

// BookingRecord is what the PMS returns for a created booking.
type BookingRecord struct {
	ID               string        `json:"id"`
	ConfirmationCode string        `json:"confirmation_code"`
	HotelID          string        `json:"hotel_id"`
	GuestID          string        `json:"guest_id"`
	RoomID           string        `json:"room_id"`
	CheckIn          time.Time     `json:"check_in"`
	CheckOut         time.Time     `json:"check_out"`
	TotalAmount      float64       `json:"total_amount"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	CreatedAt        time.Time     `json:"created_at"`
}

type GuestsPage struct {
	Items []Guest `json:"items"`
}

type RoomTypesPage struct {
	Items []RoomType `json:"items"`
}
