// ewaste - E-waste collection marketplace
// Copyright (C) 2025  ewaste contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/api/option"

	"github.com/jredh-dev/ewaste/config"
	"github.com/jredh-dev/ewaste/internal/analytics"
	"github.com/jredh-dev/ewaste/internal/auth"
	"github.com/jredh-dev/ewaste/internal/database"
	"github.com/jredh-dev/ewaste/internal/ledger"
	"github.com/jredh-dev/ewaste/internal/metrics"
	"github.com/jredh-dev/ewaste/internal/notify"
	"github.com/jredh-dev/ewaste/internal/submission"
	"github.com/jredh-dev/ewaste/internal/token"
	"github.com/jredh-dev/ewaste/internal/web/handlers"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ewaste-server %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
		os.Exit(0)
	}

	cfg := config.Load()
	logger := newLogger(cfg)
	defer logger.Sync()

	if cfg.JWT.SigningKey == "" {
		key, err := token.GenerateSigningKey()
		if err != nil {
			logger.Fatal("generate signing key", zap.Error(err))
		}
		logger.Warn("JWT_SIGNING_KEY is empty; using a random key, sessions will not survive a restart")
		cfg.JWT.SigningKey = key
	}

	ctx := context.Background()

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	// Storage and identity.
	store, provider, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("initialize backend", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer store.Close()

	// Notifications.
	var pub notify.Publisher = notify.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("sms notifications enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer pub.Close()
	notifier := notify.NewNotifier(pub, cfg.Telnyx.CountryCode, rec, logger)

	// Services.
	tokens := token.New(cfg.JWT.SigningKey, cfg.JWT.Issuer)
	authService := auth.New(provider, store, tokens, cfg.SessionTTL(), rec, logger)
	h := handlers.New(handlers.Deps{
		Store:    store,
		Auth:     authService,
		Tokens:   tokens,
		Builder:  submission.NewBuilder(store, notifier, rec, logger),
		Ledger:   ledger.New(store, notifier, rec, logger),
		Reporter: analytics.NewReporter(store),
		Logger:   logger,
	})

	limiter := handlers.NewRateLimiter(handlers.RateLimiterConfig{
		PerMinute: cfg.Submit.RatePerMinute,
		Burst:     cfg.Submit.Burst,
	}, logger)
	defer limiter.Stop()

	// Start server.
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handlers.NewRouter(h, limiter, metrics.Handler(reg)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("ewaste server starting",
		zap.String("addr", addr),
		zap.String("env", cfg.Server.Env),
		zap.String("backend", cfg.Store.Backend),
		zap.String("version", version))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// openBackend returns the document store and identity provider for the
// configured backend.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (database.Store, auth.Provider, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := database.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite store with local identities", zap.String("path", cfg.Store.SQLitePath))
		return db, auth.NewLocalProvider(db, 0), nil

	case config.BackendFirestore:
		fb := cfg.Firebase
		authEmulator := ""
		if fb.UseEmulator {
			// Both client libraries pick the emulators up from the environment.
			os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", fb.EmulatorAuthHost)
			os.Setenv("FIRESTORE_EMULATOR_HOST", fb.EmulatorFirestoreHost)
			authEmulator = fb.EmulatorAuthHost
		}

		var opts []option.ClientOption
		if fb.CredentialsPath != "" {
			opts = append(opts, option.WithCredentialsFile(fb.CredentialsPath))
		}
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: fb.ProjectID}, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("firebase app: %w", err)
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("firebase auth: %w", err)
		}
		provider, err := auth.NewFirebaseProvider(ctx, authClient, fb.APIKey, authEmulator)
		if err != nil {
			return nil, nil, err
		}

		store, err := database.OpenFirestore(ctx, fb.ProjectID, fb.FirestoreDatabase, fb.CredentialsPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using firestore store with firebase identities",
			zap.String("project", fb.ProjectID),
			zap.String("database", fb.FirestoreDatabase),
			zap.Bool("emulator", fb.UseEmulator))
		return store, provider, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
