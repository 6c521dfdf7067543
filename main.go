// ztforge is a zero-trust access decision service: it scores identity,
// device, and contextual signals to decide authentication, resource
// authorization, and network segment traffic.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carbocation/interpose"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ztforge/ztforge/config"
	"github.com/ztforge/ztforge/pkg/audit"
	"github.com/ztforge/ztforge/pkg/authn"
	"github.com/ztforge/ztforge/pkg/core"
	"github.com/ztforge/ztforge/pkg/geo"
	"github.com/ztforge/ztforge/pkg/monitor"
	"github.com/ztforge/ztforge/pkg/risk"
	"github.com/ztforge/ztforge/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load configuration")
		}
		cfg = loaded
	}

	logger := newLogger(cfg.Logging)

	store, err := newStore(cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize storage")
	}
	defer store.Close()

	locator := newLocator(cfg.Geo, logger)

	sink := audit.NewLogSink(logger, 1024)
	defer sink.Close()

	counters := &monitor.Counters{}
	mon := monitor.New(counters, cfg.Monitor.Interval, logger, nil)
	mon.Start()
	defer mon.Stop()

	decisionCore := core.New(core.Options{
		Store:    store,
		Locator:  locator,
		Sink:     sink,
		Counters: counters,
		Logger:   logger,
		RiskWeights: &risk.Weights{
			UnknownDevice:   cfg.Risk.UnknownDeviceWeight,
			ForeignLocation: cfg.Risk.ForeignLocationWeight,
			UnusualTime:     cfg.Risk.UnusualTimeWeight,
			Behavioral:      cfg.Risk.BehavioralWeight,
		},
		ActiveHours: &risk.ActiveHours{
			Start: cfg.Risk.ActiveHourStart,
			End:   cfg.Risk.ActiveHourEnd,
		},
		AuthnParams: &authn.Params{
			BiometricTrustBonus:  cfg.Authn.BiometricTrustBonus,
			PossessionTrustBonus: cfg.Authn.PossessionTrustBonus,
			LowRiskCeiling:       cfg.Authn.LowRiskCeiling,
			MediumRiskCeiling:    cfg.Authn.MediumRiskCeiling,
			HighRiskCeiling:      cfg.Authn.HighRiskCeiling,
			HighTrustFloor:       cfg.Authn.HighTrustFloor,
			MediumTrustFloor:     cfg.Authn.MediumTrustFloor,
			LowTrustFloor:        cfg.Authn.LowTrustFloor,
		},
		HighRiskLimit: &cfg.Authz.HighRiskThreshold,
		RecencyWeight: &cfg.Behavior.RecencyWeight,
	})

	router := mux.NewRouter()
	decisionCore.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	middle := interpose.New()
	middle.Use(requestLogging(logger))
	middle.UseHandler(router)

	server := &http.Server{
		Addr:         cfg.Server.Bind,
		Handler:      middle,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("bind", cfg.Server.Bind).Info("ztforge listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func newLogger(cfg config.LoggingConfig) *log.Logger {
	logger := log.New()

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}

func newStore(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Backend == "redis" {
		return storage.NewRedisStore(storage.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			KeyPrefix:    cfg.Redis.KeyPrefix,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
	}
	return storage.NewMemoryStore(), nil
}

// newLocator opens the MaxMind database when configured; otherwise
// locations are treated as region labels directly.
func newLocator(cfg config.GeoConfig, logger *log.Logger) geo.Locator {
	if cfg.DatabasePath == "" {
		return &geo.StaticLocator{}
	}
	locator, err := geo.NewMaxMindLocator(cfg.DatabasePath, cfg.LookupTimeout)
	if err != nil {
		logger.WithError(err).Warn("geo database unavailable, falling back to static locator")
		return &geo.StaticLocator{}
	}
	return locator
}

func requestLogging(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("request")
		})
	}
}
