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

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	// OutboxTopic carries messages waiting to be sent.
	OutboxTopic = "sms-outbox"

	// DLQTopic receives messages that exhausted their retries.
	DLQTopic = "sms-dlq"

	maxRetries = 3

	consumerGroup = "ewaste-notifier"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads OutboundMessages from the outbox and hands them to a
// Sender. Offsets are committed after each message is either delivered or
// moved to the DLQ, so delivery is at-least-once.
type Consumer struct {
	reader  messageReader
	dlq     messageWriter
	sender  Sender
	logger  *zap.Logger
	backoff func(attempt int) time.Duration
}

// NewConsumer creates a Consumer reading topic from brokers. An empty topic
// uses OutboxTopic.
func NewConsumer(brokers []string, topic string, sender Sender, logger *zap.Logger) *Consumer {
	if topic == "" {
		topic = OutboxTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        consumerGroup,
		MinBytes:       1,
		MaxBytes:       1 << 20, // 1 MiB
		CommitInterval: 0,       // explicit commits only
		StartOffset:    kafka.LastOffset,
	})

	dlq := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        DLQTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}

	return newConsumer(reader, dlq, sender, logger)
}

func newConsumer(reader messageReader, dlq messageWriter, sender Sender, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader: reader,
		dlq:    dlq,
		sender: sender,
		logger: logger,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		},
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consuming outbox")

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		if err := c.dispatch(ctx, m); err != nil {
			c.logger.Warn("routed message to DLQ", zap.ByteString("key", m.Key), zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Warn("commit failed, message may be redelivered", zap.Error(err))
		}
	}
}

// Close releases the reader and the DLQ writer.
func (c *Consumer) Close() error {
	rerr := c.reader.Close()
	werr := c.dlq.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

func (c *Consumer) dispatch(ctx context.Context, m kafka.Message) error {
	var msg OutboundMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return c.sendToDLQ(ctx, m, fmt.Errorf("unmarshal: %w", err))
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		var receipt Receipt
		receipt, lastErr = c.sender.Send(ctx, msg)
		if lastErr == nil {
			c.logger.Info("sent",
				zap.String("id", msg.ID),
				zap.String("carrier_id", receipt.CarrierID),
				zap.String("kind", string(msg.Kind)),
				zap.String("submission_id", msg.SubmissionID),
				zap.Int("attempt", attempt))
			return nil
		}

		c.logger.Warn("send attempt failed",
			zap.String("id", msg.ID),
			zap.String("submission_id", msg.SubmissionID),
			zap.Int("attempt", attempt),
			zap.Int("max", maxRetries),
			zap.Error(lastErr))

		if errors.Is(lastErr, ErrUndeliverable) {
			break
		}

		if attempt < maxRetries {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return c.sendToDLQ(ctx, m, lastErr)
}

func (c *Consumer) sendToDLQ(ctx context.Context, original kafka.Message, reason error) error {
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   original.Key,
		Value: original.Value,
	})
	if err != nil {
		c.logger.Error("could not write to DLQ", zap.Error(err))
	}
	return reason
}
