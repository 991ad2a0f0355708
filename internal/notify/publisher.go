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
	"fmt"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jredh-dev/ewaste/internal/metrics"
	"github.com/jredh-dev/ewaste/pkg/identity"
	"github.com/jredh-dev/ewaste/pkg/models"
)

// Publisher puts messages on the outbox.
type Publisher interface {
	Publish(ctx context.Context, msg OutboundMessage) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes OutboundMessages to the outbox topic, keyed by ID.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for the given brokers. An empty
// topic uses OutboxTopic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = OutboxTopic
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg OutboundMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.ID), Value: value})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every message. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OutboundMessage) error { return nil }
func (NopPublisher) Close() error { return nil }

// Notifier turns submission events into outbox messages. Publishing is
// best-effort: failures are logged and counted, never returned.
type Notifier struct {
	pub         Publisher
	countryCode string
	metrics     metrics.Recorder
	logger      *zap.Logger
}

// NewNotifier creates a Notifier. countryCode is applied to local numbers.
func NewNotifier(pub Publisher, countryCode string, rec metrics.Recorder, logger *zap.Logger) *Notifier {
	if pub == nil {
		pub = NopPublisher{}
	}
	if countryCode == "" {
		countryCode = identity.DefaultCountryCode
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, countryCode: countryCode, metrics: rec, logger: logger}
}

// SubmissionCreated tells the target company about a new request.
func (n *Notifier) SubmissionCreated(ctx context.Context, s *models.Submission, company *models.CompanyProfile) {
	if company == nil {
		return
	}
	n.send(ctx, KindNewRequest, s.ID, company.Phone, submissionCreatedBody(s))
}

// StatusChanged tells the submitter about a review decision, using the
// contact phone given on the submission.
func (n *Notifier) StatusChanged(ctx context.Context, s *models.Submission) {
	n.send(ctx, KindDecision, s.ID, s.Phone, statusChangedBody(s))
}

func (n *Notifier) send(ctx context.Context, kind Kind, submissionID, phone, body string) {
	to := identity.E164(phone, n.countryCode)
	if to == "" {
		n.logger.Debug("skipping notification without usable phone",
			zap.String("submission_id", submissionID))
		return
	}

	msg := OutboundMessage{
		ID:           uuid.New().String(),
		Kind:         kind,
		SubmissionID: submissionID,
		To:           to,
		Body:         body,
	}
	if err := n.pub.Publish(ctx, msg); err != nil {
		n.metrics.RecordNotifyFailure()
		n.logger.Warn("publish notification",
			zap.String("submission_id", submissionID),
			zap.String("message_id", msg.ID),
			zap.Error(err))
	}
}
