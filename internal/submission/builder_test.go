package submission

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/ewaste/internal/database"
	"github.com/jredh-dev/ewaste/pkg/models"
)

var asha = models.Principal{ID: "u1", Email: "asha@example.com", Role: models.RoleUser}

func setupStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "submission-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.PutUserProfile(ctx, &models.UserProfile{ID: "u1", Username: "asha", Email: "asha@example.com"}))
	require.NoError(t, db.PutCompanyProfile(ctx, &models.CompanyProfile{ID: "C1", CompanyName: "Green Hub", Phone: "011-1234-5678"}))
	return db
}

type recordingNotifier struct {
	created []*models.Submission
}

func (n *recordingNotifier) SubmissionCreated(_ context.Context, s *models.Submission, _ *models.CompanyProfile) {
	n.created = append(n.created, s)
}

func TestSubmit(t *testing.T) {
	db := setupStore(t)
	notifier := &recordingNotifier{}
	b := NewBuilder(db, notifier, nil, nil)
	ctx := context.Background()

	res, err := b.Submit(ctx, asha, Form{
		ItemName:  "Old laptop",
		Quantity:  2,
		Weight:    6,
		CompanyID: "C1",
		Phone:     "9876543210",
		Address:   "12 MG Road",
	})
	require.NoError(t, err)

	sub := res.Submission
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Equal(t, 110, sub.Prize)
	assert.Equal(t, 2, sub.Quantity)
	assert.Equal(t, "asha", sub.UserName)
	assert.Equal(t, "asha@example.com", sub.UserEmail)
	assert.False(t, sub.CreatedAt.IsZero())
	assert.Equal(t, int64(PointsPerSubmission), res.PointsAwarded)

	stored, err := db.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 110, stored.Prize)

	profile, err := db.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), profile.EcoPoints)

	require.Len(t, notifier.created, 1)
}

func TestSubmit_PrizeOverride(t *testing.T) {
	db := setupStore(t)
	b := NewBuilder(db, nil, nil, nil)

	override := 500
	res, err := b.Submit(context.Background(), asha, Form{Weight: 6, Quantity: 1, CompanyID: "C1", Prize: &override})
	require.NoError(t, err)
	assert.Equal(t, 500, res.Submission.Prize)

	negative := -10
	_, err = b.Submit(context.Background(), asha, Form{Weight: 6, Quantity: 1, CompanyID: "C1", Prize: &negative})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "prize", verr.Field)
}

func TestSubmit_RejectedBeforeSideEffects(t *testing.T) {
	db := setupStore(t)
	b := NewBuilder(db, nil, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal models.Principal
		form      Form
	}{
		{"missing company", asha, Form{Weight: 3, Quantity: 1}},
		{"blank company", asha, Form{Weight: 3, Quantity: 1, CompanyID: "   "}},
		{"unknown company", asha, Form{Weight: 3, Quantity: 1, CompanyID: "nope"}},
		{"company principal", models.Principal{ID: "C1", Role: models.RoleCompany}, Form{Weight: 3, CompanyID: "C1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Submit(ctx, tt.principal, tt.form)
			require.Error(t, err)
		})
	}

	subs, err := db.SubmissionsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)

	profile, err := db.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.EcoPoints)
}

func TestSubmit_ValidationErrorType(t *testing.T) {
	b := NewBuilder(setupStore(t), nil, nil, nil)
	_, err := b.Submit(context.Background(), asha, Form{Weight: 3})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "company_id", verr.Field)

	_, err = b.Submit(context.Background(), models.Principal{ID: "C1", Role: models.RoleCompany}, Form{CompanyID: "C1"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSubmit_NameFallsBackToEmail(t *testing.T) {
	db := setupStore(t)
	b := NewBuilder(db, nil, nil, nil)

	p := models.Principal{ID: "u-new", Email: "ravi@example.com", Role: models.RoleUser}
	res, err := b.Submit(context.Background(), p, Form{Weight: 1, Quantity: 1, CompanyID: "C1"})
	require.NoError(t, err)
	assert.Equal(t, "ravi", res.Submission.UserName)
}

func TestSubmit_DuplicatesWithoutKey(t *testing.T) {
	db := setupStore(t)
	b := NewBuilder(db, nil, nil, nil)
	ctx := context.Background()
	form := Form{ItemName: "Phone", Weight: 0.2, Quantity: 1, CompanyID: "C1"}

	_, err := b.Submit(ctx, asha, form)
	require.NoError(t, err)
	_, err = b.Submit(ctx, asha, form)
	require.NoError(t, err)

	subs, err := db.SubmissionsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 2)
	profile, err := db.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), profile.EcoPoints)
}

func TestSubmit_IdempotencyKey(t *testing.T) {
	db := setupStore(t)
	b := NewBuilder(db, nil, nil, nil)
	ctx := context.Background()
	form := Form{ItemName: "Phone", Weight: 0.2, Quantity: 1, CompanyID: "C1", IdempotencyKey: "form-123"}

	first, err := b.Submit(ctx, asha, form)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := b.Submit(ctx, asha, form)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Submission.ID, second.Submission.ID)
	assert.Zero(t, second.PointsAwarded)

	subs, err := db.SubmissionsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	profile, err := db.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), profile.EcoPoints)

	// The same key from another user is a different submission.
	other := models.Principal{ID: "u2", Email: "b@example.com", Role: models.RoleUser}
	third, err := b.Submit(ctx, other, form)
	require.NoError(t, err)
	assert.NotEqual(t, first.Submission.ID, third.Submission.ID)
}

type failingPoints struct {
	*database.DB
}

func (failingPoints) AddEcoPoints(context.Context, string, int64) error {
	return errors.New("quota exceeded")
}

func TestSubmit_PointsFailureKeepsSubmission(t *testing.T) {
	db := setupStore(t)
	notifier := &recordingNotifier{}
	b := NewBuilder(failingPoints{db}, notifier, nil, nil)
	ctx := context.Background()

	res, err := b.Submit(ctx, asha, Form{Weight: 7, Quantity: 1, CompanyID: "C1"})
	require.ErrorIs(t, err, ErrPointsNotAwarded)
	require.NotNil(t, res)
	assert.Zero(t, res.PointsAwarded)

	stored, err := db.GetSubmission(ctx, res.Submission.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 120, stored.Prize)
	assert.Empty(t, notifier.created)
}
