package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/httpserver/mw"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/records"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time   // for testing, defaults to time.Now
	Records        records.Store      // record repository (Redis in prod, memory in dev)
	RedisClient    *redis.Client      // nil in dev mode; readyz degrades to the record store's Ping
	Normalizer     *domain.Normalizer // server-side bookmark validation
	PublicBaseURL  string             // base for minted share links, e.g. "https://faves.example.com"
	AllowedOrigins []string           // CORS origins for the widget endpoints; empty allows none
	AllowedCIDRS   []string           // IPs allowed to access healthz/readyz/reload
	TrustProxy     bool               // true if running behind a trusted reverse proxy
	ReloadTrigger  chan struct{}      // channel to trigger a manual import-file reload
	RateLimit      mw.RateLimitConfig // per-IP budget for the widget endpoints
}

// Now returns the injected clock, or time.Now.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
