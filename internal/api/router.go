package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wanderpass/portal/internal/account"
	"github.com/wanderpass/portal/internal/api/handler"
	"github.com/wanderpass/portal/internal/api/middleware"
	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/destination"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger           handler.DBPinger
	Version            string
	Backend            string
	Sessions           middleware.SessionProvider
	Roles              account.RoleLookup
	Destinations       destination.Repository
	Cookie             middleware.CookieOptions
	GuardLoadTimeout   time.Duration
	CORSAllowedOrigins []string
	OpenAPISpec        []byte
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Location", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version, deps.Backend)
	r.Get("/health", healthHandler.ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	if deps.Destinations != nil {
		destinationHandler := handler.NewDestinationHandler(deps.Destinations)
		r.Get("/destinations", destinationHandler.List)
	}

	if deps.Sessions != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(deps.Sessions, deps.Cookie))

			authHandler := handler.NewAuthHandler(deps.Roles, deps.GuardLoadTimeout)
			r.Route("/auth", func(r chi.Router) {
				r.Get("/session", authHandler.Session)
				r.Post("/signin", authHandler.SignIn)
				r.Post("/signup", authHandler.SignUp)
				r.Post("/signout", authHandler.SignOut)
			})

			areaHandler := handler.NewAreaHandler()
			r.With(middleware.RequireRole(auth.RoleNone, deps.GuardLoadTimeout)).Get("/dashboard", areaHandler.Dashboard)
			r.With(middleware.RequireRole(auth.RoleUser, deps.GuardLoadTimeout)).Get("/applications", areaHandler.Applications)
			r.With(middleware.RequireRole(auth.RoleAdmin, deps.GuardLoadTimeout)).Get("/admin", areaHandler.Admin)
		})
	}

	return r
}
