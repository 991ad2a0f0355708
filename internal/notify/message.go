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

// Package notify publishes SMS notifications about submissions to Kafka and
// delivers them from the outbox through an SMS backend.
package notify

import (
	"fmt"

	"github.com/jredh-dev/ewaste/internal/valuation"
	"github.com/jredh-dev/ewaste/pkg/models"
)

// OutboundMessage is the JSON schema of records on the sms-outbox topic.
//
//	{
//	  "id":            "550e8400-e29b-41d4-a716-446655440000",
//	  "kind":          "new_request",
//	  "submission_id": "8c1f...",
//	  "to":            "+919876543210",
//	  "body":          "New e-waste request: Laptop x1, 2.5 kg"
//	}
type OutboundMessage struct {
	// ID correlates a message across retries, the DLQ and the carrier
	// receipt.
	ID string `json:"id"`

	Kind         Kind   `json:"kind,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`

	// To is an E.164 phone number.
	To string `json:"to"`

	Body string `json:"body"`
}

// Kind says which marketplace event produced a message.
type Kind string

const (
	// KindNewRequest goes to a company when a submission targets it.
	KindNewRequest Kind = "new_request"
	// KindDecision goes to a submitter when a company reviews their item.
	KindDecision Kind = "decision"
)

func submissionCreatedBody(s *models.Submission) string {
	return fmt.Sprintf("New e-waste request from %s: %s x%d, %.1f kg, est. %s%d. Pickup: %s",
		s.UserName, s.ItemName, s.Quantity, s.Weight, valuation.CurrencySymbol, s.Prize, s.Address)
}

func statusChangedBody(s *models.Submission) string {
	switch s.Status {
	case models.StatusApproved:
		return fmt.Sprintf("Your e-waste request for %s was approved. Estimated value %s%d.",
			s.ItemName, valuation.CurrencySymbol, s.Prize)
	case models.StatusRejected:
		return fmt.Sprintf("Your e-waste request for %s was rejected.", s.ItemName)
	}
	return fmt.Sprintf("Your e-waste request for %s is pending review.", s.ItemName)
}
