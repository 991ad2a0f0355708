package client

import (
	"context"
	"sync"

	"github.com/jredh-dev/ewaste/internal/analytics"
	"github.com/jredh-dev/ewaste/pkg/models"
)

// StatusSetter is the part of Client a RequestBoard writes through.
type StatusSetter interface {
	Requests(ctx context.Context, status string) (*Requests, error)
	SetStatus(ctx context.Context, id string, status models.Status) (*models.Submission, error)
}

// RequestBoard is a company's locally cached review list for one tab. The
// cache changes only after the server has acknowledged a write.
type RequestBoard struct {
	api StatusSetter
	tab string

	mu     sync.Mutex
	items  []models.Submission
	counts map[string]int
}

// NewRequestBoard creates a board for tab ("all" or a status).
func NewRequestBoard(api StatusSetter, tab string) *RequestBoard {
	if tab == "" {
		tab = analytics.FilterAll
	}
	return &RequestBoard{api: api, tab: tab, counts: map[string]int{}}
}

// Refresh reloads the board from the server.
func (b *RequestBoard) Refresh(ctx context.Context) error {
	res, err := b.api.Requests(ctx, b.tab)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]models.Submission(nil), res.Requests...)
	b.counts = make(map[string]int, len(res.Counts))
	for k, v := range res.Counts {
		b.counts[k] = v
	}
	return nil
}

// Items returns a copy of the cached list.
func (b *RequestBoard) Items() []models.Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Submission, len(b.items))
	copy(out, b.items)
	return out
}

// Count returns the cached count for a tab.
func (b *RequestBoard) Count(tab string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[tab]
}

// SetStatus writes a status through to the server and, on success only,
// applies it to the cached copy. An item whose new status no longer matches
// the board's tab leaves the list.
func (b *RequestBoard) SetStatus(ctx context.Context, id string, status models.Status) (*models.Submission, error) {
	updated, err := b.api.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID != id {
			continue
		}
		previous := b.items[i].Status
		if previous != updated.Status {
			b.counts[string(previous)]--
			b.counts[string(updated.Status)]++
		}
		if b.tab != analytics.FilterAll && string(updated.Status) != b.tab {
			b.items = append(b.items[:i], b.items[i+1:]...)
		} else {
			b.items[i] = *updated
		}
		break
	}
	return updated, nil
}
