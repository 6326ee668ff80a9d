package app

import (
	"context"
	"fmt"
	"time"

	"github.com/danielmarv/hms-front-sub002/internal/domain"
)

// CatalogService serves the mount-time lookup reads (guest directory,
// room-type catalog) cache-aside over the shared cache.
type CatalogService struct {
	pms           domain.PMSClient
	cache         domain.Cache
	cacheTTL      time.Duration
	guestPageSize int
}

func NewCatalogService(pms domain.PMSClient, cache domain.Cache, ttl time.Duration, guestPageSize int) *CatalogService {
	if guestPageSize <= 0 {
		guestPageSize = 100
	}
	return &CatalogService{pms: pms, cache: cache, cacheTTL: ttl, guestPageSize: guestPageSize}
}

func (s *CatalogService) GuestPageSize() int { return s.guestPageSize }

func (s *CatalogService) ListGuests(ctx context.Context, hotelID string, q domain.GuestQuery) ([]domain.Guest, error) {
	if q.Limit <= 0 {
		q.Limit = s.guestPageSize
	}
	key := fmt.Sprintf("guests:%s:%d:%s", hotelID, q.Limit, q.Q)
	var page domain.GuestsPage
	if ok, _ := s.cache.Get(ctx, key, &page); ok {
		return page.Items, nil
	}
	items, err := s.pms.ListGuests(ctx, hotelID, q)
	if err != nil {
		return nil, err
	}
	// copy before caching so callers can't mutate the cached value
	cp := make([]domain.Guest, len(items))
	copy(cp, items)
	_ = s.cache.Set(ctx, key, domain.GuestsPage{Items: cp}, int(s.cacheTTL.Seconds()))
	return items, nil
}

func (s *CatalogService) ListRoomTypes(ctx context.Context, hotelID string) ([]domain.RoomType, error) {
	key := "room_types:" + hotelID
	var page domain.RoomTypesPage
	if ok, _ := s.cache.Get(ctx, key, &page); ok {
		return page.Items, nil
	}
	items, err := s.pms.ListRoomTypes(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	cp := make([]domain.RoomType, len(items))
	copy(cp, items)
	_ = s.cache.Set(ctx, key, domain.RoomTypesPage{Items: cp}, int(s.cacheTTL.Seconds()))
	return items, nil
}

// Warm prefetches both catalogs for one hotel so a wizard mount hits
// the cache. Used by cmd/warmup.
func (s *CatalogService) Warm(ctx context.Context, hotelID string) error {
	if _, err := s.ListGuests(ctx, hotelID, domain.GuestQuery{Limit: s.guestPageSize}); err != nil {
		return fmt.Errorf("warm guests for %s: %w", hotelID, err)
	}
	if _, err := s.ListRoomTypes(ctx, hotelID); err != nil {
		return fmt.Errorf("warm room types for %s: %w", hotelID, err)
	}
	return nil
}
