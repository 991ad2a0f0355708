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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/ewaste/pkg/models"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []OutboundMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg OutboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type countingRecorder struct {
	notifyFailures int
}

func (r *countingRecorder) RecordSubmission() {}
func (r *countingRecorder) RecordPointsAwarded(int64) {}
func (r *countingRecorder) RecordPointsFailure() {}
func (r *countingRecorder) RecordStatusChange(string) {}
func (r *countingRecorder) RecordLogin(string) {}
func (r *countingRecorder) RecordIdentityError(string) {}
func (r *countingRecorder) RecordNotifyFailure() { r.notifyFailures++ }

func TestNotifier_SubmissionCreated(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, "91", nil, nil)

	sub := &models.Submission{ID: "s1", UserName: "asha", ItemName: "Laptop", Quantity: 1, Weight: 2.5, Prize: 25, Address: "12 MG Road"}
	n.SubmissionCreated(context.Background(), sub, &models.CompanyProfile{Phone: "011-1234-5678"})

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "+911112345678", pub.msgs[0].To)
	assert.Contains(t, pub.msgs[0].Body, "Laptop x1, 2.5 kg")
	assert.Contains(t, pub.msgs[0].Body, "₹25")
	assert.Equal(t, KindNewRequest, pub.msgs[0].Kind)
	assert.Equal(t, "s1", pub.msgs[0].SubmissionID)
	assert.NotEmpty(t, pub.msgs[0].ID)
}

func TestNotifier_StatusChanged(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, "", nil, nil)

	sub := &models.Submission{ID: "s1", ItemName: "CRT Monitor", Prize: 270, Phone: "98765 43210", Status: models.StatusApproved}
	n.StatusChanged(context.Background(), sub)

	sub.Status = models.StatusRejected
	n.StatusChanged(context.Background(), sub)

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "+919876543210", pub.msgs[0].To)
	assert.Contains(t, pub.msgs[0].Body, "approved")
	assert.Contains(t, pub.msgs[1].Body, "rejected")
	assert.Equal(t, KindDecision, pub.msgs[1].Kind)
}

func TestNotifier_SkipsAndSwallowsFailures(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, "91", nil, nil)

	n.StatusChanged(context.Background(), &models.Submission{ID: "s1", Phone: "12"})
	n.SubmissionCreated(context.Background(), &models.Submission{ID: "s1"}, nil)
	assert.Empty(t, pub.msgs)

	rec := &countingRecorder{}
	failing := NewNotifier(&recordingPublisher{err: errors.New("broker down")}, "91", rec, nil)
	failing.StatusChanged(context.Background(), &models.Submission{ID: "s1", Phone: "9876543210"})
	assert.Equal(t, 1, rec.notifyFailures)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	msg := OutboundMessage{ID: "m1", To: "+919876543210", Body: "hi"}
	require.NoError(t, p.Publish(context.Background(), msg))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("m1"), w.msgs[0].Key)

	var got OutboundMessage
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, msg, got)
}

// fakeReader serves queued messages, then blocks until ctx is cancelled.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	close(r.drained)
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type flakySender struct {
	mu       sync.Mutex
	failures map[string]int // remaining failures per message ID
	refused  map[string]bool
	attempts map[string]int
	sent     []string
}

func (s *flakySender) Send(_ context.Context, msg OutboundMessage) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts == nil {
		s.attempts = map[string]int{}
	}
	s.attempts[msg.ID]++
	if s.refused[msg.ID] {
		return Receipt{}, fmt.Errorf("invalid number: %w", ErrUndeliverable)
	}
	if s.failures[msg.ID] > 0 {
		s.failures[msg.ID]--
		return Receipt{}, errors.New("carrier unavailable")
	}
	s.sent = append(s.sent, msg.ID)
	return Receipt{CarrierID: "carrier-" + msg.ID}, nil
}

func encode(t *testing.T, msg OutboundMessage) kafka.Message {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(msg.ID), Value: b}
}

func TestConsumer_Run(t *testing.T) {
	reader := &fakeReader{
		queue: []kafka.Message{
			encode(t, OutboundMessage{ID: "ok", To: "+1", Body: "a"}),
			encode(t, OutboundMessage{ID: "flaky", To: "+1", Body: "b"}),
			encode(t, OutboundMessage{ID: "dead", To: "+1", Body: "c"}),
			encode(t, OutboundMessage{ID: "refused", To: "+1", Body: "d"}),
			{Key: []byte("garbage"), Value: []byte("{not json")},
		},
		drained: make(chan struct{}),
	}
	dlq := &fakeWriter{}
	sender := &flakySender{
		failures: map[string]int{"flaky": 2, "dead": maxRetries},
		refused:  map[string]bool{"refused": true},
	}

	c := newConsumer(reader, dlq, sender, nil)
	c.backoff = func(int) time.Duration { return time.Millisecond }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-reader.drained
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"ok", "flaky"}, sender.sent)
	assert.Equal(t, maxRetries, sender.attempts["dead"])
	assert.Equal(t, 1, sender.attempts["refused"], "refused messages are not retried")
	require.Len(t, dlq.msgs, 3)
	assert.Equal(t, []byte("dead"), dlq.msgs[0].Key)
	assert.Equal(t, []byte("refused"), dlq.msgs[1].Key)
	assert.Equal(t, []byte("garbage"), dlq.msgs[2].Key)
	assert.Len(t, reader.committed, 5, "every message is committed")
}

func TestTelnyxSender_Send(t *testing.T) {
	var got telnyxRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer KEY123", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"40318f2e-carrier"}}`))
	}))
	defer srv.Close()

	s := NewTelnyxSender("KEY123", "+15550001234")
	s.endpoint = srv.URL

	receipt, err := s.Send(context.Background(), OutboundMessage{
		ID:           "m1",
		Kind:         KindNewRequest,
		SubmissionID: "s1",
		To:           "+919876543210",
		Body:         "New e-waste request from asha: Laptop x1.\nPickup: 12 MG Road,\n  Bengaluru",
	})
	require.NoError(t, err)
	assert.Equal(t, "40318f2e-carrier", receipt.CarrierID)
	assert.Equal(t, telnyxRequest{
		From: "+15550001234",
		To:   "+919876543210",
		Text: "ewaste: New e-waste request from asha: Laptop x1. Pickup: 12 MG Road, Bengaluru",
		Type: "SMS",
	}, got)
}

func TestSMSText(t *testing.T) {
	assert.Equal(t, "ewaste: hello", smsText("  hello \n"))

	long := smsText(strings.Repeat("ab ", 1000))
	assert.Equal(t, maxTextRunes, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestTelnyxSender_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		msg           OutboundMessage
		wantContains  string
		undeliverable bool
	}{
		{"bad credentials", http.StatusUnauthorized, "nope", OutboundMessage{ID: "m1", To: "+1"}, "telnyx returned 401", true},
		{"invalid destination", http.StatusUnprocessableEntity, `{"errors":[{"code":"40310","title":"Invalid 'to' address"}]}`, OutboundMessage{ID: "m2", To: "+1"}, "40310: Invalid 'to' address", true},
		{"api error in 200", http.StatusOK, `{"errors":[{"code":"40001","detail":"not routable"}]}`, OutboundMessage{ID: "m3", To: "+1"}, "not routable", true},
		{"throttled", http.StatusTooManyRequests, `{"errors":[{"code":"10011","detail":"slow down"}]}`, OutboundMessage{ID: "m4", To: "+1"}, "10011", false},
		{"carrier outage", http.StatusBadGateway, "", OutboundMessage{ID: "m5", To: "+1"}, "502", false},
		{"accepted without id", http.StatusOK, `{"data":{}}`, OutboundMessage{ID: "m6", To: "+1"}, "without a message id", false},
		{"no recipient", http.StatusOK, "", OutboundMessage{ID: "m7"}, "no recipient", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := NewTelnyxSender("KEY", "+1")
			s.endpoint = srv.URL
			_, err := s.Send(context.Background(), tt.msg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantContains)
			assert.Contains(t, err.Error(), "message "+tt.msg.ID)
			assert.Equal(t, tt.undeliverable, errors.Is(err, ErrUndeliverable))
		})
	}
}
