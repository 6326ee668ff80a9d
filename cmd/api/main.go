package main

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	server "github.com/danielmarv/hms-front-sub002/internal/adapters/http_server"
	"github.com/danielmarv/hms-front-sub002/internal/adapters/observability"
	"github.com/danielmarv/hms-front-sub002/internal/adapters/pms"
	redisad "github.com/danielmarv/hms-front-sub002/internal/adapters/redis"
	"github.com/danielmarv/hms-front-sub002/internal/app"
	"github.com/danielmarv/hms-front-sub002/internal/shared"
	"github.com/danielmarv/hms-front-sub002/internal/storage/memory"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	client, err := pms.New(cfg.PMSBase, cfg.PMSKey, cfg.PMSRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PMS client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// deps
	catalog := app.NewCatalogService(client, cache, cfg.CacheTTL, cfg.GuestPageSize)
	hotels := app.NewHotelContext(cache)
	sessions := memory.NewSessionStore(cfg.SessionTTL)
	sessions.StartJanitor(context.Background(), cfg.SessionTTL/2)
	wizard := app.NewWizardService(client, sessions, catalog)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Wizard: wizard, Catalog: catalog, Hotels: hotels})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
