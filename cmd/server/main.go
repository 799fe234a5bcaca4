package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	specpkg "github.com/wanderpass/portal/api"
	"github.com/wanderpass/portal/internal/api"
	"github.com/wanderpass/portal/internal/api/handler"
	"github.com/wanderpass/portal/internal/api/middleware"
	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/backend"
	"github.com/wanderpass/portal/internal/config"
	"github.com/wanderpass/portal/internal/database"
	"github.com/wanderpass/portal/internal/destination"
	"github.com/wanderpass/portal/internal/localauth"
	"github.com/wanderpass/portal/internal/profile"
	"github.com/wanderpass/portal/internal/role"
	"github.com/wanderpass/portal/internal/session"
	"github.com/wanderpass/portal/internal/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)
	for _, w := range cfg.Warnings() {
		slog.Warn(w)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	storage := auth.NewMemoryStorage(cfg.SessionCacheSize, cfg.SessionStorageTTL)

	backends, err := initBackends(cfg, storage)
	if err != nil {
		slog.Error("failed to initialize auth backends", "error", err)
		os.Exit(1)
	}

	selected, err := backends.Select(cfg.Backend)
	if err != nil {
		slog.Error("auth backend not available", "error", err)
		os.Exit(1)
	}
	if cfg.ProfileSource == config.ProfileSourcePostgres {
		selected.Profiles = profile.NewRepository(db.Pool())
	}

	resolver := role.NewResolver(selected.Profiles, slog.Default())

	sessions, err := session.NewRegistry(ctx, selected.Factory, resolver, cfg.SessionCacheSize, slog.Default())
	if err != nil {
		slog.Error("failed to create session registry", "error", err)
		os.Exit(1)
	}

	refresher := session.NewRefresher(sessions, cfg.RefreshInterval, cfg.RefreshMargin)
	go refresher.Start(ctx)

	destinations, err := initDestinations(ctx, cfg, db)
	if err != nil {
		slog.Error("failed to initialize destinations", "error", err)
		os.Exit(1)
	}

	var pinger handler.DBPinger
	if db != nil {
		pinger = db
	}

	router := api.NewRouter(api.RouterDeps{
		DBPinger:     pinger,
		Version:      cfg.Version,
		Backend:      cfg.Backend,
		Sessions:     sessions,
		Roles:        resolver,
		Destinations: destinations,
		Cookie: middleware.CookieOptions{
			Secure: cfg.CookieSecure,
			MaxAge: cfg.SessionStorageTTL,
		},
		GuardLoadTimeout:   cfg.GuardLoadTimeout,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		OpenAPISpec:        specpkg.OpenAPISpec,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting portal server", "port", cfg.Port, "version", cfg.Version, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	stop()
	sessions.Close()

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(logHandler))
}

// initDatabase connects when DATABASE_URL is set. Without one the service runs on
// the backend's profile store and the seed file.
func initDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initBackends registers the local backend, and Supabase when configured, each with
// the profile store its roles are read from.
func initBackends(cfg *config.Config, storage auth.SessionStorage) (*backend.Registry, error) {
	registry := backend.NewRegistry()

	local, err := localauth.NewBackend(localauth.Config{
		JWTSecret:  cfg.LocalJWTSecret,
		TokenTTL:   cfg.LocalTokenTTL,
		BcryptCost: cfg.BcryptCost,
	}, storage)
	if err != nil {
		return nil, fmt.Errorf("creating local backend: %w", err)
	}
	if cfg.LocalAdminEmail != "" {
		if _, err := local.CreateAccount(cfg.LocalAdminEmail, cfg.LocalAdminPassword, "Administrator", auth.RoleAdmin); err != nil {
			return nil, fmt.Errorf("seeding local admin: %w", err)
		}
		slog.Info("seeded local admin account", "email", cfg.LocalAdminEmail)
	}
	if err := registry.Register(config.BackendLocal, local, local); err != nil {
		return nil, err
	}

	if cfg.SupabaseURL != "" {
		sb, err := supabase.NewBackend(supabase.Config{
			URL:        cfg.SupabaseURL,
			AnonKey:    cfg.SupabaseAnonKey,
			ServiceKey: cfg.SupabaseServiceKey,
			JWTSecret:  cfg.SupabaseJWTSecret,
		}, storage)
		if err != nil {
			return nil, fmt.Errorf("creating supabase backend: %w", err)
		}
		if err := registry.Register(config.BackendSupabase, sb, sb.Profiles()); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// initDestinations loads the seed file and serves it from Postgres when a database
// is configured, from memory otherwise. Reads are cached for the stale time.
func initDestinations(ctx context.Context, cfg *config.Config, db *database.DB) (destination.Repository, error) {
	var seed []destination.Destination
	if cfg.DestinationsSeed != "" {
		items, err := destination.LoadSeed(cfg.DestinationsSeed)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("destinations seed file not found", "path", cfg.DestinationsSeed)
		case err != nil:
			return nil, err
		default:
			seed = items
		}
	}

	var base destination.Repository
	if db != nil {
		repo := destination.NewPostgresRepository(db.Pool())
		for _, d := range seed {
			if err := repo.Upsert(ctx, d); err != nil {
				return nil, err
			}
		}
		base = repo
	} else {
		base = destination.NewStaticRepository(seed)
	}

	return destination.NewCachedRepository(base, cfg.DestinationsStaleTime), nil
}
