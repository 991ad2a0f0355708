// Package analytics summarises a company's submissions.
package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/jredh-dev/ewaste/pkg/models"
)

// FilterAll selects every submission regardless of status.
const FilterAll = "all"

// Aggregate computes the totals over subs. Non-finite weights or values
// count as 0 and the approval rate of an empty set is 0.
func Aggregate(subs []models.Submission) models.Stats {
	var st models.Stats
	st.Total = len(subs)

	for _, s := range subs {
		switch s.Status {
		case models.StatusPending:
			st.Pending++
		case models.StatusApproved:
			st.Approved++
		case models.StatusRejected:
			st.Rejected++
		}
		st.TotalWeight += finite(s.Weight)
		st.TotalValue += float64(s.Prize)
	}

	if st.Total > 0 {
		st.ApprovalRate = float64(st.Approved) / float64(st.Total)
	}
	st.ApprovalPercent = int(math.Round(st.ApprovalRate * 100))
	return st
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Filter returns the submissions for one review tab: FilterAll (or "") or
// a status name.
func Filter(subs []models.Submission, tab string) ([]models.Submission, error) {
	if tab == "" || tab == FilterAll {
		return subs, nil
	}
	status := models.Status(tab)
	if !status.Valid() {
		return nil, fmt.Errorf("unknown filter %q", tab)
	}
	out := make([]models.Submission, 0, len(subs))
	for _, s := range subs {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

// Counts is the badge count for every review tab.
func Counts(subs []models.Submission) map[string]int {
	counts := map[string]int{FilterAll: len(subs)}
	for _, st := range models.Statuses {
		counts[string(st)] = 0
	}
	for _, s := range subs {
		if s.Status.Valid() {
			counts[string(s.Status)]++
		}
	}
	return counts
}

// Source lists a company's submissions.
type Source interface {
	SubmissionsByCompany(ctx context.Context, companyID string) ([]models.Submission, error)
}

// Reporter recomputes statistics from storage on every call.
type Reporter struct {
	src Source
}

// NewReporter creates a Reporter.
func NewReporter(src Source) *Reporter {
	return &Reporter{src: src}
}

// Report returns the current statistics for companyID.
func (r *Reporter) Report(ctx context.Context, companyID string) (models.Stats, error) {
	subs, err := r.src.SubmissionsByCompany(ctx, companyID)
	if err != nil {
		return models.Stats{}, fmt.Errorf("list submissions: %w", err)
	}
	return Aggregate(subs), nil
}
