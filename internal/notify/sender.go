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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	telnyxMessagesURL = "https://api.telnyx.com/v2/messages"

	// smsBrand prefixes every text so recipients know who sent it.
	smsBrand = "ewaste: "

	// maxTextRunes caps a text at ten concatenated GSM segments.
	maxTextRunes = 1530
)

// ErrUndeliverable marks a message the carrier refused outright. Retrying
// it cannot succeed.
var ErrUndeliverable = errors.New("undeliverable")

// Receipt is the carrier's acknowledgement of one message.
type Receipt struct {
	// CarrierID is the carrier's message ID, for matching delivery reports.
	CarrierID string
}

// Sender is an SMS backend.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) (Receipt, error)
}

// TelnyxSender sends marketplace texts through the Telnyx v2 messages API.
type TelnyxSender struct {
	apiKey     string
	fromNumber string
	endpoint   string
	httpClient *http.Client
}

// NewTelnyxSender creates a TelnyxSender. fromNumber is the provisioned
// number in E.164 format.
func NewTelnyxSender(apiKey, fromNumber string) *TelnyxSender {
	return &TelnyxSender{
		apiKey:     apiKey,
		fromNumber: fromNumber,
		endpoint:   telnyxMessagesURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type telnyxRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type telnyxResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// smsText turns a message body into one line of branded text. Addresses
// typed into the app may carry line breaks; they are folded into spaces.
func smsText(body string) string {
	text := smsBrand + strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(text) <= maxTextRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxTextRunes-1]) + "…"
}

// Send delivers msg and returns the carrier's receipt. Errors carry the
// message ID. Rejections that retrying cannot fix wrap ErrUndeliverable.
func (s *TelnyxSender) Send(ctx context.Context, msg OutboundMessage) (Receipt, error) {
	if msg.To == "" {
		return Receipt{}, fmt.Errorf("message %s: no recipient: %w", msg.ID, ErrUndeliverable)
	}
	body, err := json.Marshal(telnyxRequest{
		From: s.fromNumber,
		To:   msg.To,
		Text: smsText(msg.Body),
		Type: "SMS",
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("message %s: marshal: %w", msg.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("message %s: build request: %w", msg.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("message %s: post: %w", msg.ID, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var tr telnyxResponse
	decodeErr := json.Unmarshal(raw, &tr)

	if len(tr.Errors) > 0 {
		e := tr.Errors[0]
		detail := e.Detail
		if detail == "" {
			detail = e.Title
		}
		err := fmt.Errorf("message %s: telnyx %d error %s: %s", msg.ID, resp.StatusCode, e.Code, detail)
		return Receipt{}, classify(resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("message %s: telnyx returned %d: %s", msg.ID, resp.StatusCode, strings.TrimSpace(string(raw)))
		return Receipt{}, classify(resp.StatusCode, err)
	}
	if decodeErr != nil || tr.Data.ID == "" {
		return Receipt{}, fmt.Errorf("message %s: telnyx accepted without a message id", msg.ID)
	}
	return Receipt{CarrierID: tr.Data.ID}, nil
}

// classify marks client errors other than timeouts and throttling as
// undeliverable. A 2xx carrying API errors is treated the same way.
func classify(status int, err error) error {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return err
	case status >= 500:
		return err
	}
	return fmt.Errorf("%w: %w", ErrUndeliverable, err)
}
