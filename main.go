package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/acme/autocert"

	"github.com/krillmap/dashboard/dashboard"
	"github.com/krillmap/dashboard/figure"
	"github.com/krillmap/dashboard/httpx"
	"github.com/krillmap/dashboard/internal/config"
	"github.com/krillmap/dashboard/internal/logging"
	"github.com/krillmap/dashboard/measurements"
	"github.com/krillmap/dashboard/zones"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "krillmap: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "krillmap: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := openSource(ctx, cfg.Data)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.Data.Source).Msg("failed to open measurement source")
	}
	defer closeSource()

	cached, err := measurements.NewCachedSource(source, cfg.Data.CacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create measurement cache")
	}

	registry, err := zones.NewRegistry(os.DirFS(cfg.Data.ZoneDir), cfg.Zones)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load zone table")
	}

	if cfg.Map.AccessToken == "" {
		log.Warn().Msg("MAPBOX_ACCESS_TOKEN not set, satellite style is unavailable")
	}
	composer := figure.NewComposer(registry, figure.Config{
		AccessToken: cfg.Map.AccessToken,
		View:        figure.DefaultView,
		Basemap:     cfg.Map.Basemap,
	})

	handler := dashboard.NewHandler(cached, registry, composer, dashboard.Options{
		Years:          cfg.Map.Years,
		Months:         cfg.Map.Months,
		DefaultYear:    cfg.Map.DefaultYear,
		DefaultMonth:   cfg.Map.DefaultMonth,
		DefaultStyle:   figure.Style(cfg.Map.DefaultStyle),
		PublicURL:      cfg.Server.PublicURL,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, log.With().Str("component", "dashboard").Logger())

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Requests(log),
		middleware.Recoverer,
	)

	router.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"cached_periods": cached.Len(),
		})
	})
	router.Get("/", handler.Shell)
	router.Mount("/api", handler.Routes())

	log.Info().
		Str("source", cfg.Data.Source).
		Str("data_dir", cfg.Data.Dir).
		Int("zones", len(registry.Descriptors())).
		Msg("dashboard ready")

	if cfg.Server.Domain != "" {
		err = serveWithDomain(ctx, cfg.Server, router, log)
	} else {
		err = serve(ctx, &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}, log)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// openSource builds the configured measurement source and prepares its
// schema. The returned func releases any held connections.
func openSource(ctx context.Context, cfg config.DataConfig) (measurements.Source, func(), error) {
	noop := func() {}
	switch cfg.Source {
	case config.SourceCSV:
		return measurements.NewCSVSource(os.DirFS(cfg.Dir)), noop, nil
	case config.SourceNetCDF:
		return measurements.NewNetCDFSource(cfg.Dir), noop, nil
	case config.SourcePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create connection pool: %w", err)
		}
		src := measurements.NewPostgresSource(pool)
		if err := src.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return src, pool.Close, nil
	case config.SourceSQLite:
		src, err := measurements.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		if err := src.EnsureSchema(ctx); err != nil {
			_ = src.Close()
			return nil, noop, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return src, func() { _ = src.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unsupported data source %q", cfg.Source)
}

func serve(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()
	return waitAndShutdown(ctx, errc, log, srv)
}

// serveWithDomain answers ACME challenges and redirects on :80 and serves
// HTTPS with Let's Encrypt certificates on :443.
func serveWithDomain(ctx context.Context, cfg config.ServerConfig, handler http.Handler, log zerolog.Logger) error {
	domain := cfg.Domain
	certMgr := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache(cfg.CertDir),
		HostPolicy: func(_ context.Context, host string) error {
			if host == domain || host == "www."+domain {
				return nil
			}
			if net.ParseIP(host) != nil {
				return nil
			}
			return errors.New("acme/autocert: host not configured")
		},
	}

	redirect := http.NewServeMux()
	redirect.Handle("/.well-known/acme-challenge/", certMgr.HTTPHandler(nil))
	redirect.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://"+domain+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
	plain := &http.Server{
		Addr:              ":80",
		Handler:           redirect,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsCfg := certMgr.TLSConfig()
	tlsCfg.MinVersion = tls.VersionTLS12
	secure := &http.Server{
		Addr:              ":443",
		Handler:           handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		log.Info().Str("addr", plain.Addr).Msg("listening (ACME and redirect)")
		errc <- plain.ListenAndServe()
	}()
	go func() {
		log.Info().Str("addr", secure.Addr).Str("domain", domain).Msg("listening (HTTPS)")
		errc <- secure.ListenAndServeTLS("", "")
	}()
	return waitAndShutdown(ctx, errc, log, plain, secure)
}

func waitAndShutdown(ctx context.Context, errc <-chan error, log zerolog.Logger, servers ...*http.Server) error {
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
