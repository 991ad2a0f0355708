package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/ewaste/pkg/models"
)

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Incorrect password."}`))
			return
		}
		w.Write([]byte(`{"token":"tok","principal":{"id":"u1","email":"a@example.com","role":"user"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "")
	sess, err := c.Login(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)
	assert.Equal(t, models.RoleUser, sess.Principal.Role)

	_, err = c.Login(context.Background(), "a@example.com", "nope")
	require.Error(t, err)
	assert.Equal(t, "Incorrect password.", err.Error())
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestClient_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	err := c.Logout(context.Background())
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Equal(t, "server returned 401", err.Error())

	c.SetToken("tok")
	assert.NoError(t, c.Logout(context.Background()))
}

func TestClient_SubmitPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Error adding product. Please try again.","submission":{"id":"s1","status":"pending"}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "tok").Submit(context.Background(), SubmitForm{ItemName: "tv"})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "s1", res.Submission.ID)
	assert.Equal(t, int64(0), res.PointsAwarded)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL, "").Estimate(context.Background(), "6")
	require.Error(t, err)
	assert.Equal(t, 0, StatusOf(err))
}

type fakeAPI struct {
	list    Requests
	failSet error
	calls   int
}

func (f *fakeAPI) Requests(ctx context.Context, status string) (*Requests, error) {
	return &f.list, nil
}

func (f *fakeAPI) SetStatus(ctx context.Context, id string, status models.Status) (*models.Submission, error) {
	f.calls++
	if f.failSet != nil {
		return nil, f.failSet
	}
	for _, s := range f.list.Requests {
		if s.ID == id {
			s.Status = status
			return &s, nil
		}
	}
	return nil, &APIError{Status: http.StatusNotFound}
}

func boardAPI() *fakeAPI {
	return &fakeAPI{list: Requests{
		Requests: []models.Submission{
			{ID: "a", Status: models.StatusPending},
			{ID: "b", Status: models.StatusPending},
		},
		Counts: map[string]int{"all": 2, "pending": 2},
	}}
}

func TestRequestBoard_UpdatesAfterServerSuccess(t *testing.T) {
	api := boardAPI()
	b := NewRequestBoard(api, "pending")
	require.NoError(t, b.Refresh(context.Background()))
	require.Len(t, b.Items(), 2)

	updated, err := b.SetStatus(context.Background(), "a", models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)

	items := b.Items()
	require.Len(t, items, 1, "approved item leaves the pending tab")
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, 1, b.Count("pending"))
	assert.Equal(t, 1, b.Count("approved"))
	assert.Equal(t, 2, b.Count("all"))
}

func TestRequestBoard_FailedWriteLeavesCache(t *testing.T) {
	api := boardAPI()
	api.failSet = errors.New("unavailable")
	b := NewRequestBoard(api, "")
	require.NoError(t, b.Refresh(context.Background()))

	_, err := b.SetStatus(context.Background(), "a", models.StatusRejected)
	require.Error(t, err)
	assert.Equal(t, 1, api.calls)

	items := b.Items()
	require.Len(t, items, 2)
	assert.Equal(t, models.StatusPending, items[0].Status)
	assert.Equal(t, 2, b.Count("pending"))
	assert.Equal(t, 0, b.Count("rejected"))
}

func TestRequestBoard_AllTabKeepsItems(t *testing.T) {
	b := NewRequestBoard(boardAPI(), "")
	require.NoError(t, b.Refresh(context.Background()))

	_, err := b.SetStatus(context.Background(), "b", models.StatusRejected)
	require.NoError(t, err)

	items := b.Items()
	require.Len(t, items, 2)
	assert.Equal(t, models.StatusRejected, items[1].Status)

	// Items returns a copy.
	items[0].Status = models.StatusApproved
	assert.Equal(t, models.StatusPending, b.Items()[0].Status)
}
