package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gatewaydemo/filter"
	"gatewaydemo/logger"
	"gatewaydemo/manager"
	"gatewaydemo/middleware"
	"gatewaydemo/notifier"
	"gatewaydemo/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		httpbin    string
		port       int
		adminPort  int
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:          "gatewaydemo",
		Short:        "Demo API gateway: upstream forwarding, fallback and mock endpoints",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg, err := LoadConfig(configPath, func(c *Config) {
				if flags.Changed("httpbin") {
					c.Httpbin = httpbin
				}
				if flags.Changed("port") {
					c.ListenPort = port
				}
				if flags.Changed("admin-port") {
					c.AdminPort = adminPort
				}
				if flags.Changed("log-level") {
					c.LogLevel = logLevel
				}
			})
			if err != nil {
				logger.Error("Failed to load config", "err", err)
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yaml", "path to the YAML config file")
	cmd.Flags().StringVar(&httpbin, "httpbin", DefaultHttpbin, "upstream base URI")
	cmd.Flags().IntVar(&port, "port", 8080, "gateway listen port")
	cmd.Flags().IntVar(&adminPort, "admin-port", 9090, "metrics and management port")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}

func run(ctx context.Context, cfg Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Init(os.Stdout, level)

	logger.Info("Starting gateway", "listen_port", cfg.ListenPort, "admin_port", cfg.AdminPort, "httpbin", cfg.Httpbin)

	var activeStore store.Store = store.NewLocalStore()
	if cfg.Redis.Addr != "" {
		rs := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rs.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("Redis unreachable, keeping breaker state in memory", "addr", cfg.Redis.Addr, "err", err)
		} else {
			activeStore = rs
			logger.Info("Shared breaker state initialized (Redis)", "addr", cfg.Redis.Addr)
		}
	}

	geo := filter.NewGeoIP(cfg.GeoIPDBPath)
	defer geo.Close()

	var limiter *filter.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = filter.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go limiter.Run(ctx)
		logger.Info("Rate limiting enabled", "rps", cfg.RateLimit.RPS, "burst", cfg.RateLimit.Burst)
	}

	webhook := notifier.NewWebhook(cfg.WebhookURL)

	gw, err := NewGateway(cfg, GatewayDeps{
		Store:   activeStore,
		Limiter: limiter,
		GeoIP:   geo,
		OnTrip:  webhook.BreakerOpened,
	})
	if err != nil {
		logger.Error("Failed to build routes", "err", err)
		return err
	}
	for i, r := range gw.Router.Routes() {
		logger.Info("Route registered", "order", i, "id", r.ID, "predicate", r.Predicate.String())
	}

	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	manager.NewManagementAPI(activeStore, gw.Router, gw.Breaker).Register(adminMux)

	servers := []*http.Server{
		{
			Addr:              fmt.Sprintf(":%d", cfg.ListenPort),
			Handler:           middleware.Stack(gw.Router),
			ReadHeaderTimeout: 2 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		{
			Addr:              fmt.Sprintf(":%d", cfg.AdminPort),
			Handler:           adminMux,
			ReadHeaderTimeout: 2 * time.Second,
		},
	}

	errc := make(chan error, len(servers))
	for _, srv := range servers {
		go func(s *http.Server) {
			logger.Info("Listening", "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("%s: %w", s.Addr, err)
			}
		}(srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Gateway stopping...")
	case runErr = <-errc:
		logger.Error("Server failed", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(s *http.Server) {
			defer wg.Done()
			if err := s.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Shutdown incomplete", "addr", s.Addr, "err", err)
			}
		}(srv)
	}
	wg.Wait()

	logger.Info("All servers stopped gracefully")
	return runErr
}
