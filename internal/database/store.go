package database

import (
	"context"
	"errors"
	"sort"

	"github.com/jredh-dev/ewaste/pkg/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("document already exists")
)

// Profiles stores the per-role profile documents, both keyed by identity ID.
type Profiles interface {
	// PutUserProfile writes the registration fields of a user profile,
	// merging into any existing document so an accumulated point counter
	// survives.
	PutUserProfile(ctx context.Context, p *models.UserProfile) error
	// GetUserProfile returns (nil, nil) when no profile exists.
	GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error)
	// AddEcoPoints atomically increments the user's point counter, creating
	// the profile document with the counter at delta if it does not exist.
	AddEcoPoints(ctx context.Context, userID string, delta int64) error

	PutCompanyProfile(ctx context.Context, p *models.CompanyProfile) error
	// GetCompanyProfile returns (nil, nil) when no profile exists.
	GetCompanyProfile(ctx context.Context, id string) (*models.CompanyProfile, error)
	ListCompanyProfiles(ctx context.Context) ([]models.CompanyProfile, error)
	// UpdateCompanyProfile returns ErrNotFound for an unknown company.
	UpdateCompanyProfile(ctx context.Context, id string, u models.CompanyUpdate) error
}

// Submissions stores e-waste submissions keyed by a generated ID.
type Submissions interface {
	// CreateSubmission assigns s.ID when empty. When s.ID is preset and
	// already taken it returns ErrDuplicate.
	CreateSubmission(ctx context.Context, s *models.Submission) error
	// GetSubmission returns (nil, nil) when the submission does not exist.
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	SubmissionsByCompany(ctx context.Context, companyID string) ([]models.Submission, error)
	SubmissionsByUser(ctx context.Context, userID string) ([]models.Submission, error)
	// SetSubmissionStatus overwrites the status field. It returns ErrNotFound
	// for an unknown submission.
	SetSubmissionStatus(ctx context.Context, id string, status models.Status) error
}

// Store is the full document store used by the services.
type Store interface {
	Profiles
	Submissions
	Close() error
}

// newestFirst orders submissions by creation time, newest first.
func newestFirst(subs []models.Submission) {
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
}

func sortCompanies(cs []models.CompanyProfile) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CompanyName != cs[j].CompanyName {
			return cs[i].CompanyName < cs[j].CompanyName
		}
		return cs[i].ID < cs[j].ID
	})
}
