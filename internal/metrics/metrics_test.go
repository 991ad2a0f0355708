package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSubmission()
	c.RecordSubmission()
	c.RecordPointsAwarded(5)
	c.RecordPointsAwarded(5)
	c.RecordPointsFailure()
	c.RecordNotifyFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.submissions))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.pointsAwarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pointsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifyFailed))
}

func TestCollector_Labels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStatusChange("approved")
	c.RecordStatusChange("approved")
	c.RecordStatusChange("rejected")
	c.RecordLogin("company")
	c.RecordIdentityError("wrong_password")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.statusChanges.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.statusChanges.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.logins.WithLabelValues("company")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.identityErrors.WithLabelValues("wrong_password")))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSubmission()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ewaste_submissions_total 1")
}
