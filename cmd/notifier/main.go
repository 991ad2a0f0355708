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

// notifier is a long-running Kafka consumer that reads submission and status
// SMS from the outbox topic and delivers them through Telnyx.
//
// Configuration is read from the same environment as the server:
//
//	KAFKA_BROKERS       comma-separated broker list, e.g. "kafka:9092"
//	KAFKA_TOPIC         outbox topic (default: sms-outbox)
//	TELNYX_API_KEY      Telnyx API v2 key
//	TELNYX_FROM_NUMBER  E.164 number provisioned in Telnyx
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jredh-dev/ewaste/config"
	"github.com/jredh-dev/ewaste/internal/notify"
)

func main() {
	cfg := config.Load()

	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		os.Stderr.WriteString("notifier: init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	requireSet(logger, "KAFKA_BROKERS", len(cfg.Kafka.Brokers) > 0)
	requireSet(logger, "TELNYX_API_KEY", cfg.Telnyx.APIKey != "")
	requireSet(logger, "TELNYX_FROM_NUMBER", cfg.Telnyx.FromNumber != "")

	sender := notify.NewTelnyxSender(cfg.Telnyx.APIKey, cfg.Telnyx.FromNumber)
	consumer := notify.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, sender, logger)
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("close consumer", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("notifier starting",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("from", cfg.Telnyx.FromNumber))
	if err := consumer.Run(ctx); err != nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// requireSet stops the process when a required variable is missing, so
// misconfiguration fails at startup rather than on the first message.
func requireSet(logger *zap.Logger, key string, ok bool) {
	if !ok {
		logger.Fatal("required environment variable is not set", zap.String("key", key))
	}
}
