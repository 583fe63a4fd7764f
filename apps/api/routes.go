package main

import (
	"context"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	accountshandler "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/handler"
	appointmentshandler "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/handler"
	discoveryhandler "github.com/wilsonllucena/igreja-conciliada/domains/discovery/be/handler"
	eventshandler "github.com/wilsonllucena/igreja-conciliada/domains/events/be/handler"
	leadershandler "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/handler"
	membershandler "github.com/wilsonllucena/igreja-conciliada/domains/members/be/handler"
	profileshandler "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/handler"
	tenantshandler "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/handler"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/metrics"
	platformmiddleware "github.com/wilsonllucena/igreja-conciliada/platform/go/middleware"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
)

type handlers struct {
	accounts     *accountshandler.Handler
	members      *membershandler.Handler
	leaders      *leadershandler.Handler
	appointments *appointmentshandler.Handler
	events       *eventshandler.Handler
	profiles     *profileshandler.Handler
	discovery    *discoveryhandler.Handler
	tenants      *tenantshandler.Handler
}

type routerConfig struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Contract *openapi3.T
	// Authenticate attaches verified credentials; anonymous requests pass through.
	Authenticate func(http.Handler) http.Handler
	// Scope attaches the caller's tenant scope.
	Scope          func(http.Handler) http.Handler
	Ready          func(ctx context.Context) error
	Files          http.Handler
	RequestTimeout time.Duration
	CORSOrigins    []string
}

func newRouter(cfg routerConfig, h handlers) http.Handler {
	root := chi.NewRouter()
	root.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		platformmiddleware.CORS(cfg.CORSOrigins),
	)
	if cfg.Metrics != nil {
		root.Use(platformmiddleware.Metrics(cfg.Metrics))
	}
	root.Use(platformlogging.RequestLogger(cfg.Logger))

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Get("/readyz", readyHandler(cfg.Ready, cfg.Logger))
	if cfg.Metrics != nil {
		root.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.Files != nil {
		root.Method(http.MethodGet, "/files/*", cfg.Files)
	}

	// ---- Swagger UI + OpenAPI JSON (public) ----
	registerDocsRoutes(root, cfg.Contract, cfg.Logger)

	api := chi.NewRouter()
	if cfg.RequestTimeout > 0 {
		api.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	api.Use(
		cfg.Authenticate,
		cfg.Scope,
		platformmiddleware.RequestTrace,
		platformmiddleware.ContractValidator(cfg.Contract),
	)

	// Public: sign-up, sign-in and the discovery pages.
	api.Post("/auth/signup", h.accounts.SignUp)
	api.Post("/auth/signin", h.accounts.SignIn)
	api.Route("/public", func(r chi.Router) {
		r.Get("/leaders", h.discovery.Leaders)
		r.Get("/events", h.discovery.Events)
		r.Get("/events/{eventId}", h.discovery.Event)
		r.Post("/events/{eventId}/registrations", h.discovery.Register)
		r.Post("/appointments", h.discovery.Book)
	})

	api.Group(func(r chi.Router) {
		r.Use(access.RequireAuthenticated)

		r.Post("/auth/signout", h.accounts.SignOut)
		r.Get("/auth/session", h.accounts.Session)
		r.Put("/auth/password", h.accounts.UpdatePassword)

		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.members.List)
			r.Post("/", h.members.Create)
			r.Post("/bulk", h.members.CreateBulk)
			r.Get("/{id}", h.members.Get)
			r.Patch("/{id}", h.members.Update)
			r.Delete("/{id}", h.members.Delete)
		})

		r.Route("/leaders", func(r chi.Router) {
			r.Get("/", h.leaders.List)
			r.Post("/", h.leaders.Create)
			r.Get("/available", h.leaders.ListAvailable)
			r.Get("/{id}", h.leaders.Get)
			r.Patch("/{id}", h.leaders.Update)
			r.Delete("/{id}", h.leaders.Delete)
			r.With(access.RequireRole(access.RoleAdmin)).Post("/{id}/user", h.leaders.CreateUser)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.appointments.List)
			r.Post("/", h.appointments.Create)
			r.Post("/status", h.appointments.UpdateStatus)
			r.Get("/{id}", h.appointments.Get)
			r.Patch("/{id}", h.appointments.Update)
			r.Delete("/{id}", h.appointments.Delete)
			r.Post("/{id}/complete", h.appointments.Complete)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.events.List)
			r.Post("/", h.events.Create)
			r.Get("/upcoming", h.events.Upcoming)
			r.Get("/{id}", h.events.Get)
			r.Patch("/{id}", h.events.Update)
			r.Delete("/{id}", h.events.Delete)
			r.Put("/{id}/banner", h.events.UploadBanner)
			r.Get("/{id}/link", h.events.Link)
			r.Get("/{id}/registrations", h.events.Registrations)
		})

		r.Get("/me", h.profiles.Me)
		r.Patch("/me", h.profiles.UpdateMe)

		r.Get("/tenant", h.tenants.Current)
		r.Get("/tenant/stats", h.tenants.Stats)

		r.Group(func(r chi.Router) {
			r.Use(access.RequireRole(access.RoleAdmin))

			r.Get("/users", h.profiles.List)
			r.Post("/users", h.accounts.CreateUser)
			r.Get("/users/{id}", h.profiles.Get)
			r.Patch("/users/{id}", h.profiles.Update)
			r.Delete("/users/{id}", h.profiles.Delete)

			r.Patch("/tenant/settings", h.tenants.UpdateSettings)
			r.Put("/tenant/logo", h.tenants.UploadLogo)
		})
	})

	root.Mount("/api/v1", api)
	return root
}

func readyHandler(ready func(ctx context.Context) error, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				platformlogging.FromRequest(r, logger).Warn("readiness check failed", zap.Error(err))
				problem.Write(w, problem.New(http.StatusServiceUnavailable, "Service Unavailable", "dependencies are not ready", problem.TypeInternal, nil))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
