package database

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jredh-dev/ewaste/pkg/models"
)

func TestSubmissionFromMap(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("typed fields", func(t *testing.T) {
		s := submissionFromMap("r1", map[string]interface{}{
			"userId":    "u1",
			"userName":  "asha",
			"name":      "Laptop",
			"quantity":  int64(2),
			"weight":    7.5,
			"companyId": "c1",
			"prize":     int64(125),
			"status":    "approved",
			"createdAt": created,
		})
		assert.Equal(t, "r1", s.ID)
		assert.Equal(t, 2, s.Quantity)
		assert.Equal(t, 7.5, s.Weight)
		assert.Equal(t, 125, s.Prize)
		assert.Equal(t, models.StatusApproved, s.Status)
		assert.Equal(t, created, s.CreatedAt)
	})

	t.Run("string numbers from web client", func(t *testing.T) {
		s := submissionFromMap("r2", map[string]interface{}{
			"quantity":  "3",
			"weight":    "12",
			"createdAt": "2024-03-01T10:00:00Z",
		})
		assert.Equal(t, 3, s.Quantity)
		assert.Equal(t, 12.0, s.Weight)
		assert.True(t, created.Equal(s.CreatedAt))
	})

	t.Run("missing and invalid fields", func(t *testing.T) {
		s := submissionFromMap("r3", map[string]interface{}{
			"weight": "heavy",
			"prize":  true,
		})
		assert.Equal(t, 0.0, s.Weight)
		assert.Equal(t, 0, s.Prize)
		assert.Equal(t, models.StatusPending, s.Status)
		assert.True(t, s.CreatedAt.IsZero())
	})

	t.Run("non-finite and out of range numbers", func(t *testing.T) {
		tests := []struct {
			name       string
			quantity   interface{}
			weight     interface{}
			prize      interface{}
			wantWeight float64
		}{
			{"NaN strings", "NaN", "NaN", "NaN", 0},
			{"Infinity strings", "Infinity", "-Infinity", "+Inf", 0},
			{"NaN floats", math.NaN(), math.NaN(), math.NaN(), 0},
			{"infinite floats", math.Inf(1), math.Inf(-1), math.Inf(1), 0},
			{"beyond int64", "1e300", 2.5, -1e300, 2.5},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := submissionFromMap("r4", map[string]interface{}{
					"quantity": tt.quantity,
					"weight":   tt.weight,
					"prize":    tt.prize,
				})
				assert.Equal(t, 0, s.Quantity)
				assert.Equal(t, 0, s.Prize)
				assert.Equal(t, tt.wantWeight, s.Weight)
			})
		}
	})
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		in   interface{}
		want int64
	}{
		{int64(42), 42},
		{7.9, 7},
		{"-3.5", -3},
		{" 12 ", 12},
		{"NaN", 0},
		{"Infinity", 0},
		{9.3e18, 0},
		{-9.3e18, 0},
		{nil, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, asInt(tt.in), "%v", tt.in)
	}
}

func TestNewestFirst(t *testing.T) {
	now := time.Now()
	subs := []models.Submission{
		{ID: "old", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", CreatedAt: now},
		{ID: "mid", CreatedAt: now.Add(-time.Minute)},
	}
	newestFirst(subs)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{subs[0].ID, subs[1].ID, subs[2].ID})
}
