package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/ewaste/internal/database"
	"github.com/jredh-dev/ewaste/pkg/models"
)

var greenHub = models.Principal{ID: "C1", Role: models.RoleCompany}

func setup(t *testing.T) (*database.DB, string) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "ledger-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.PutUserProfile(ctx, &models.UserProfile{ID: "u1", Username: "asha", Mobile: "9876543210"}))
	sub := &models.Submission{
		UserID: "u1", ItemName: "Laptop", Quantity: 1, Weight: 7, CompanyID: "C1",
		Prize: 120, Phone: "9876543210", Status: models.StatusPending, CreatedAt: time.Now(),
	}
	require.NoError(t, db.CreateSubmission(ctx, sub))
	return db, sub.ID
}

type recordingNotifier struct {
	changes []models.Status
}

func (n *recordingNotifier) StatusChanged(_ context.Context, s *models.Submission) {
	n.changes = append(n.changes, s.Status)
}

func TestSetStatus_ThenRead(t *testing.T) {
	db, id := setup(t)
	notifier := &recordingNotifier{}
	l := New(db, notifier, nil, nil)
	ctx := context.Background()

	got, err := l.SetStatus(ctx, greenHub, id, models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)

	stored, err := db.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Equal(t, []models.Status{models.StatusApproved}, notifier.changes)
}

func TestSetStatus_AnyToAny(t *testing.T) {
	db, id := setup(t)
	l := New(db, nil, nil, nil)
	ctx := context.Background()

	for _, from := range models.Statuses {
		for _, to := range models.Statuses {
			_, err := l.SetStatus(ctx, greenHub, id, from)
			require.NoError(t, err)
			got, err := l.SetStatus(ctx, greenHub, id, to)
			require.NoError(t, err, "%s -> %s", from, to)
			assert.Equal(t, to, got.Status)
		}
	}
}

func TestSetStatus_Errors(t *testing.T) {
	db, id := setup(t)
	l := New(db, nil, nil, nil)
	ctx := context.Background()

	_, err := l.SetStatus(ctx, greenHub, id, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = l.SetStatus(ctx, greenHub, "missing", models.StatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.SetStatus(ctx, models.Principal{ID: "C2", Role: models.RoleCompany}, id, models.StatusApproved)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = l.SetStatus(ctx, models.Principal{ID: "C1", Role: models.RoleUser}, id, models.StatusApproved)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.EqualError(t, err, "only the target company may review this submission")

	stored, err := db.GetSubmission(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status, "rejected changes leave the record alone")
}

type failingStatus struct {
	*database.DB
}

func (failingStatus) SetSubmissionStatus(context.Context, string, models.Status) error {
	return errors.New("deadline exceeded")
}

func TestSetStatus_StorageFailure(t *testing.T) {
	db, id := setup(t)
	notifier := &recordingNotifier{}
	l := New(failingStatus{db}, notifier, nil, nil)

	got, err := l.SetStatus(context.Background(), greenHub, id, models.StatusRejected)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Empty(t, notifier.changes)
}

func TestSetStatus_SameStatusDoesNotNotify(t *testing.T) {
	db, id := setup(t)
	notifier := &recordingNotifier{}
	l := New(db, notifier, nil, nil)

	_, err := l.SetStatus(context.Background(), greenHub, id, models.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, notifier.changes)
}

func TestSubmitter(t *testing.T) {
	db, id := setup(t)
	l := New(db, nil, nil, nil)
	ctx := context.Background()

	p, err := l.Submitter(ctx, greenHub, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "asha", p.Username)

	_, err = l.Submitter(ctx, models.Principal{ID: "C2", Role: models.RoleCompany}, id)
	assert.ErrorIs(t, err, ErrForbidden)
}
