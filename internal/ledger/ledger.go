// Package ledger records review decisions on submissions.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jredh-dev/ewaste/internal/database"
	"github.com/jredh-dev/ewaste/internal/metrics"
	"github.com/jredh-dev/ewaste/pkg/models"
)

var (
	ErrInvalidStatus = errors.New("invalid status")
	ErrForbidden     = errors.New("only the target company may review this submission")
	ErrNotFound      = errors.New("submission not found")
)

// Store is the storage the ledger needs.
type Store interface {
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	SetSubmissionStatus(ctx context.Context, id string, status models.Status) error
	GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error)
}

// Notifier is told about status changes.
type Notifier interface {
	StatusChanged(ctx context.Context, s *models.Submission)
}

// Ledger applies status changes on behalf of the target company.
type Ledger struct {
	store    Store
	notifier Notifier
	metrics  metrics.Recorder
	logger   *zap.Logger
}

// New creates a Ledger. notifier may be nil.
func New(store Store, notifier Notifier, rec metrics.Recorder, logger *zap.Logger) *Ledger {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, notifier: notifier, metrics: rec, logger: logger}
}

// authorize loads a submission and checks that actor is its target company.
func (l *Ledger) authorize(ctx context.Context, actor models.Principal, id string) (*models.Submission, error) {
	if actor.Role != models.RoleCompany {
		return nil, ErrForbidden
	}
	sub, err := l.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if sub == nil {
		return nil, ErrNotFound
	}
	if sub.CompanyID != actor.ID {
		return nil, ErrForbidden
	}
	return sub, nil
}

// SetStatus assigns status to a submission. Every status may follow every
// other; repeating the current status is allowed. The returned copy
// reflects the write only once it has succeeded.
func (l *Ledger) SetStatus(ctx context.Context, actor models.Principal, id string, status models.Status) (*models.Submission, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	sub, err := l.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if err := l.store.SetSubmissionStatus(ctx, id, status); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("set status: %w", err)
	}

	previous := sub.Status
	sub.Status = status
	l.metrics.RecordStatusChange(string(status))
	l.logger.Info("status changed",
		zap.String("submission_id", id),
		zap.String("company_id", actor.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))

	if l.notifier != nil && previous != status {
		l.notifier.StatusChanged(ctx, sub)
	}
	return sub, nil
}

// Submitter returns the profile of the user behind a submission, for the
// company reviewing it. A submitter without a profile yields (nil, nil).
func (l *Ledger) Submitter(ctx context.Context, actor models.Principal, id string) (*models.UserProfile, error) {
	sub, err := l.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	profile, err := l.store.GetUserProfile(ctx, sub.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return profile, nil
}
