package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jmcleod/newsdesk/activity"
	"github.com/jmcleod/newsdesk/api"
	"github.com/jmcleod/newsdesk/auth"
	"github.com/jmcleod/newsdesk/internal/config"
	"github.com/jmcleod/newsdesk/web"
)

var (
	addr             string
	tlsCert          string
	tlsKey           string
	directoryFile    string
	sessionLifetime  time.Duration
	activityInterval time.Duration
)

// applyServeFlags copies explicitly set serve flags over the environment
// values. It is a no-op for other commands.
func applyServeFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		c.Addr = addr
	}
	if flags.Changed("tls-cert") {
		c.TLSCert = tlsCert
	}
	if flags.Changed("tls-key") {
		c.TLSKey = tlsKey
	}
	if flags.Changed("directory-file") {
		c.DirectoryFile = directoryFile
	}
	if flags.Changed("session-lifetime") {
		c.SessionLifetime = sessionLifetime
	}
	if flags.Changed("activity-interval") {
		c.ActivityInterval = activityInterval
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin console server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dir, err := loadDirectory(cfg)
		if err != nil {
			return fmt.Errorf("failed to load directory: %w", err)
		}

		durable, closeDurable, err := openDurable(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeDurable()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := api.NewMetrics(reg)

		store := newSessionStore(cfg, durable, logger)
		bus := activity.NewBus()
		mgr := auth.NewManager(dir, store, bus,
			auth.WithLogger(logger),
			auth.WithMonitorOptions(
				activity.WithInterval(cfg.ActivityInterval),
				activity.WithObserver(metrics.ObserveExtend),
				activity.WithLogger(logger),
			))
		defer mgr.Close()
		metrics.WatchAuthenticated(reg, mgr.IsAuthenticated)

		a := api.New(mgr, bus,
			api.WithLogger(logger),
			api.WithMetrics(metrics),
			api.WithAlertFunc(func(e api.AlertEvent) {
				logger.Warn("alert",
					slog.String("type", string(e.Type)),
					slog.String("message", e.Message),
					slog.Int("count", e.Count),
					slog.Int("threshold", e.Threshold))
			}))

		pages, err := web.Load()
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           newRouter(mgr, a, pages, reg),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if cfg.TLSCert != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if server.TLSConfig != nil {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		logger.Info("starting server",
			slog.String("addr", cfg.Addr),
			slog.String("context_id", mgr.ID()),
			slog.String("durable_backend", cfg.DurableBackend),
			slog.Bool("tls", server.TLSConfig != nil),
			slog.Bool("resumed_session", mgr.IsAuthenticated()))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", slog.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// newRouter wires the API, the console views, health and metrics.
func newRouter(mgr *auth.Manager, a *api.API, pages *web.Pages, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Mount("/api/v1", a.Router())

	r.Group(func(r chi.Router) {
		r.Use(api.SecurityHeaders)
		r.Handle("/static/*", pages.Static())
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin", http.StatusFound)
		})
		r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
			if mgr.IsAuthenticated() {
				http.Redirect(w, r, "/admin", http.StatusFound)
				return
			}
			pages.Login(w, r)
		})
		r.Group(func(r chi.Router) {
			r.Use(mgr.Guard("/login"))
			r.Get("/admin", pages.Admin)
			r.Get("/admin/*", pages.Admin)
		})
	})
	return r
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "Address to listen on")
	f.StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	f.StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	f.StringVar(&directoryFile, "directory-file", "", "YAML file listing admin principals; built-in admins when empty")
	f.DurationVar(&sessionLifetime, "session-lifetime", 24*time.Hour, "Session validity after login or activity")
	f.DurationVar(&activityInterval, "activity-interval", 5*time.Minute, "Keep-alive interval while a session is active")
}
