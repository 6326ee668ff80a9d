package main

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/danielmarv/hms-front-sub002/internal/adapters/observability"
	"github.com/danielmarv/hms-front-sub002/internal/adapters/pms"
	redisad "github.com/danielmarv/hms-front-sub002/internal/adapters/redis"
	"github.com/danielmarv/hms-front-sub002/internal/app"
	"github.com/danielmarv/hms-front-sub002/internal/shared"
)

// Prefetches the guest directory and room-type catalog for each
// configured hotel so wizard mounts hit a warm cache.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	if len(cfg.WarmupHotels) == 0 {
		log.Warn().Msg("WARMUP_HOTEL_IDS is empty, nothing to do")
		return
	}
	log.Info().
		Str("base", cfg.PMSBase).
		Int("workers", cfg.Workers).
		Int("hotels", len(cfg.WarmupHotels)).
		Msg("warmup starting")

	client, err := pms.New(cfg.PMSBase, cfg.PMSKey, cfg.PMSRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PMS client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	catalog := app.NewCatalogService(client, cache, cfg.CacheTTL, cfg.GuestPageSize)

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, id := range cfg.WarmupHotels {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(hotelID string) {
			defer wg.Done()
			defer sem.Release(1)

			if err := catalog.Warm(ctx, hotelID); err != nil {
				log.Warn().Str("hotel", hotelID).Err(err).Msg("warmup failed")
				return
			}
			log.Info().Str("hotel", hotelID).Msg("warmup ok")
		}(id)
	}

	wg.Wait()
	log.Info().Msg("warmup completed")
}
