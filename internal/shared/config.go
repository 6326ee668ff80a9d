package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	MetricsAddr   string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	PMSBase       string
	PMSKey        string
	PMSRPS        int
	CacheTTL      time.Duration
	SessionTTL    time.Duration
	GuestPageSize int
	Workers       int
	WarmupHotels  []string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ":9100"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		PMSBase:       env("PMS_BASE_URL", "https://pms.internal/api"),
		PMSKey:        env("PMS_API_KEY", ""),
		PMSRPS:        atoi("PMS_RPS", 5),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		SessionTTL:    time.Duration(atoi("SESSION_IDLE_SECONDS", 1800)) * time.Second,
		GuestPageSize: atoi("GUEST_PAGE_SIZE", 100),
		Workers:       atoi("WARMUP_WORKERS", 8),
		WarmupHotels:  splitCSV(env("WARMUP_HOTEL_IDS", "")),
	}
	if c.PMSKey == "" {
		log.Warn().Msg("PMS_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
