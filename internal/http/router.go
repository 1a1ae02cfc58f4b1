package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"tally/internal/auth"
	"tally/internal/cache"
	"tally/internal/category"
	"tally/internal/config"
	"tally/internal/dashboard"
	"tally/internal/day"
	"tally/internal/http/handler"
	mw "tally/internal/http/middleware"
	"tally/internal/session"
	"tally/internal/stats"
)

// Services holds the stores and aggregators behind the API.
type Services struct {
	Users      *auth.Service
	Categories *category.Service
	Sessions   *session.Service
	Days       *day.Service
	Stats      *stats.Service
	Dashboard  *dashboard.Service
	Cache      cache.Cache
	Now        func() time.Time
}

// NewServices wires the services on one database and cache. refreshJobs
// queues a stats refresh with every day write.
func NewServices(db *gorm.DB, c cache.Cache, log hclog.Logger, refreshJobs bool) *Services {
	if c == nil {
		c = cache.Nop{}
	}
	now := time.Now
	cats := &category.Service{DB: db}
	sessions := &session.Service{DB: db, Now: now}
	days := &day.Service{DB: db, Cache: c, RefreshJobs: refreshJobs, Log: log.Named("days")}
	return &Services{
		Users:      &auth.Service{DB: db},
		Categories: cats,
		Sessions:   sessions,
		Days:       days,
		Stats: &stats.Service{
			Days: days, Sessions: sessions, Categories: cats,
			Cache: c, Now: now, Log: log.Named("stats"),
		},
		Dashboard: &dashboard.Service{
			Days: days, Sessions: sessions,
			Cache: c, Now: now, Log: log.Named("dashboard"),
		},
		Cache: c,
		Now:   now,
	}
}

func NewRouter(cfg config.Config, svc *Services, jwtSvc *auth.JWT, log hclog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(log.Named("http")))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	hlog := log.Named("api")
	requireAuth := auth.RequireAuth(jwtSvc)

	ah := &handler.AuthHandler{Users: svc.Users, JWT: jwtSvc, Log: hlog}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)
	r.Post("/auth/validate", ah.Validate)
	r.With(requireAuth).Post("/auth/refresh", ah.Refresh)

	me := &handler.MeHandler{Users: svc.Users, Log: hlog}
	r.With(requireAuth).Get("/me", me.Me)

	ch := &handler.CategoryHandler{Categories: svc.Categories, Sessions: svc.Sessions, Stats: svc.Stats, Cache: svc.Cache, Log: hlog}
	sh := &handler.SessionHandler{Sessions: svc.Sessions, Days: svc.Days, Cache: svc.Cache, Log: hlog}
	dh := &handler.DayHandler{Days: svc.Days, Now: svc.Now, Log: hlog}
	st := &handler.StatsHandler{Stats: svc.Stats, Dashboards: svc.Dashboard, Log: hlog}

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/colors", ch.Colors)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", ch.List)
			r.Post("/", ch.Create)
			r.Get("/global", ch.Global)
			r.Get("/session/{sessionId}", ch.BySession)
			r.Get("/{id}", ch.Get)
			r.Put("/{id}", ch.Update)
			r.Delete("/{id}", ch.Delete)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sh.List)
			r.Post("/", sh.Create)
			r.Post("/configure", sh.Configure)
			r.Get("/{id}", sh.Get)
			r.Put("/{id}", sh.Update)
			r.Delete("/{id}", sh.Delete)
		})

		r.Route("/days", func(r chi.Router) {
			r.Post("/", dh.Create)
			r.Get("/session/{sessionId}", dh.ListMonth)
			r.Get("/session/{sessionId}/all", dh.ListAll)
			r.Put("/{id}", dh.Update)
			r.Delete("/{id}", dh.Delete)
		})

		r.Get("/stats/day/{sessionId}/{date}", st.Day)
		r.Get("/dashboard/{sessionId}", st.Dashboard)
	})

	return r
}
