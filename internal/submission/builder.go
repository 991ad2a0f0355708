// Package submission turns a user's item form into a stored submission and
// awards the eco points that go with it.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jredh-dev/ewaste/internal/database"
	"github.com/jredh-dev/ewaste/internal/metrics"
	"github.com/jredh-dev/ewaste/internal/valuation"
	"github.com/jredh-dev/ewaste/pkg/models"
)

// PointsPerSubmission is awarded for every new submission.
const PointsPerSubmission = 5

// idempotencyNamespace seeds deterministic submission IDs.
var idempotencyNamespace = uuid.MustParse("6f1c8f5e-3b7a-4d2e-9a41-0c5e7b2d9f13")

var (
	// ErrForbidden is returned when a non-user principal submits.
	ErrForbidden = errors.New("only users can submit items")
	// ErrPointsNotAwarded means the submission was stored but the point
	// award failed. The returned Result is still valid.
	ErrPointsNotAwarded = errors.New("submission stored but points not awarded")
)

// ValidationError rejects a form before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Form is what a user fills in to offer an item.
type Form struct {
	ItemName  string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Weight    float64 `json:"weight"`
	CompanyID string  `json:"company_id"`
	ImageRef  string  `json:"image_url,omitempty"`
	Phone     string  `json:"phone"`
	Address   string  `json:"address"`
	// Prize overrides the computed estimate when set.
	Prize *int `json:"prize,omitempty"`
	// IdempotencyKey makes retries of the same form safe.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Store is the storage the builder needs.
type Store interface {
	GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error)
	GetCompanyProfile(ctx context.Context, id string) (*models.CompanyProfile, error)
	CreateSubmission(ctx context.Context, s *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	AddEcoPoints(ctx context.Context, userID string, delta int64) error
}

// Notifier is told about new submissions.
type Notifier interface {
	SubmissionCreated(ctx context.Context, s *models.Submission, company *models.CompanyProfile)
}

// Result describes a completed submission.
type Result struct {
	Submission    *models.Submission `json:"submission"`
	PointsAwarded int64              `json:"points_awarded"`
	// Replayed is true when an idempotency key matched an earlier submission.
	Replayed bool `json:"replayed,omitempty"`
}

// Builder creates submissions.
type Builder struct {
	store    Store
	notifier Notifier
	metrics  metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewBuilder creates a Builder. notifier may be nil.
func NewBuilder(store Store, notifier Notifier, rec metrics.Recorder, logger *zap.Logger) *Builder {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{store: store, notifier: notifier, metrics: rec, logger: logger, now: time.Now}
}

// Submit validates f, stores the submission as pending and awards
// PointsPerSubmission to the submitter. The two writes are sequential and
// not transactional: if the award fails the submission stays stored and
// ErrPointsNotAwarded is returned alongside the Result.
func (b *Builder) Submit(ctx context.Context, p models.Principal, f Form) (*Result, error) {
	if p.Role != models.RoleUser {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(f.CompanyID) == "" {
		return nil, &ValidationError{Field: "company_id", Message: "Please select a company."}
	}
	prize, err := valuation.Resolve(f.Weight, f.Prize)
	if err != nil {
		return nil, &ValidationError{Field: "prize", Message: "Estimated value cannot be negative."}
	}

	company, err := b.store.GetCompanyProfile(ctx, f.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("lookup company: %w", err)
	}
	if company == nil {
		return nil, &ValidationError{Field: "company_id", Message: "Selected company does not exist."}
	}

	name, email, err := b.snapshot(ctx, p)
	if err != nil {
		return nil, err
	}

	sub := &models.Submission{
		UserID:    p.ID,
		UserName:  name,
		UserEmail: email,
		ItemName:  strings.TrimSpace(f.ItemName),
		Quantity:  f.Quantity,
		Weight:    f.Weight,
		CompanyID: f.CompanyID,
		ImageRef:  f.ImageRef,
		Phone:     strings.TrimSpace(f.Phone),
		Address:   strings.TrimSpace(f.Address),
		Prize:     prize,
		Status:    models.StatusPending,
		CreatedAt: b.now().UTC(),
	}
	if f.IdempotencyKey != "" {
		sub.ID = uuid.NewSHA1(idempotencyNamespace, []byte(p.ID+":"+f.IdempotencyKey)).String()
	}

	if err := b.store.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, database.ErrDuplicate) && f.IdempotencyKey != "" {
			return b.replay(ctx, sub.ID)
		}
		return nil, fmt.Errorf("create submission: %w", err)
	}
	b.metrics.RecordSubmission()
	b.logger.Info("submission created",
		zap.String("submission_id", sub.ID),
		zap.String("user_id", p.ID),
		zap.String("company_id", sub.CompanyID),
		zap.Int("prize", sub.Prize))

	res := &Result{Submission: sub}
	if err := b.store.AddEcoPoints(ctx, p.ID, PointsPerSubmission); err != nil {
		b.metrics.RecordPointsFailure()
		b.logger.Error("award eco points",
			zap.String("submission_id", sub.ID),
			zap.String("user_id", p.ID),
			zap.Error(err))
		return res, fmt.Errorf("%w: %v", ErrPointsNotAwarded, err)
	}
	res.PointsAwarded = PointsPerSubmission
	b.metrics.RecordPointsAwarded(PointsPerSubmission)

	if b.notifier != nil {
		b.notifier.SubmissionCreated(ctx, sub, company)
	}
	return res, nil
}

// snapshot returns the submitter name and email copied onto the record.
func (b *Builder) snapshot(ctx context.Context, p models.Principal) (string, string, error) {
	profile, err := b.store.GetUserProfile(ctx, p.ID)
	if err != nil {
		return "", "", fmt.Errorf("lookup user profile: %w", err)
	}

	email := p.Email
	name := ""
	if profile != nil {
		name = profile.Username
		if email == "" {
			email = profile.Email
		}
	}
	if name == "" {
		name = email
		if i := strings.IndexByte(email, '@'); i > 0 {
			name = email[:i]
		}
	}
	return name, email, nil
}

func (b *Builder) replay(ctx context.Context, id string) (*Result, error) {
	existing, err := b.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load existing submission: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("create submission: %w", database.ErrDuplicate)
	}
	b.logger.Info("submission replayed", zap.String("submission_id", id))
	return &Result{Submission: existing, Replayed: true}, nil
}
