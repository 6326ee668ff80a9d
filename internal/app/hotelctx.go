package app

import (
	"context"

	"github.com/danielmarv/hms-front-sub002/internal/domain"
)

// HotelContext is the cross-session "currently selected hotel" choice,
// keyed per operator and kept in the shared cache without expiry. It
// is explicit state with init/set/get, not a hidden singleton.
type HotelContext struct {
	cache domain.Cache
}

func NewHotelContext(cache domain.Cache) *HotelContext {
	return &HotelContext{cache: cache}
}

func (h *HotelContext) Set(ctx context.Context, operatorID, hotelID string) error {
	return h.cache.Set(ctx, contextKey(operatorID), hotelID, 0)
}

// Get returns the operator's active hotel, or ErrNoActiveHotel when
// none was ever selected.
func (h *HotelContext) Get(ctx context.Context, operatorID string) (string, error) {
	var hotelID string
	ok, err := h.cache.Get(ctx, contextKey(operatorID), &hotelID)
	if err != nil {
		return "", err
	}
	if !ok || hotelID == "" {
		return "", domain.ErrNoActiveHotel
	}
	return hotelID, nil
}

func contextKey(operatorID string) string { return "active_hotel:" + operatorID }
