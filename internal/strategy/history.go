package strategy

import (
	"context"
	"sort"
	"sync"

	"github.com/fairline-labs/fairline/internal/model"
)

// HistoryStore is the injected execution-history state behind the strategy
// engine's learning model. Implementations must be safe for concurrent use;
// the intelligence loop only ever touches a given entity from its own
// serialized subject queue, but different subjects run in parallel.
type HistoryStore interface {
	// Append records one executed-action outcome.
	Append(ctx context.Context, entry model.OutcomeEntry) error
	// ForEntity returns all retained entries for a target entity, oldest first.
	ForEntity(ctx context.Context, entityID string) ([]model.OutcomeEntry, error)
	// Decay halves the count of retained LEGAL_REJECTION entries for the
	// entity, keeping the most recent floor(n/2). Other outcome types are
	// untouched. Returns the number of entries discarded.
	Decay(ctx context.Context, entityID string) (int, error)
}

// MemoryHistory is the in-process HistoryStore.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]model.OutcomeEntry
}

// NewMemoryHistory returns an empty in-memory history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]model.OutcomeEntry)}
}

func (m *MemoryHistory) Append(_ context.Context, entry model.OutcomeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.EntityID] = append(m.entries[entry.EntityID], entry)
	return nil
}

func (m *MemoryHistory) ForEntity(_ context.Context, entityID string) ([]model.OutcomeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.entries[entityID]
	out := make([]model.OutcomeEntry, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MemoryHistory) Decay(_ context.Context, entityID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.entries[entityID]
	if len(src) == 0 {
		return 0, nil
	}

	var rejections []model.OutcomeEntry
	var others []model.OutcomeEntry
	for _, e := range src {
		if e.Outcome == model.OutcomeLegalRejection {
			rejections = append(rejections, e)
		} else {
			others = append(others, e)
		}
	}
	if len(rejections) == 0 {
		return 0, nil
	}

	sort.SliceStable(rejections, func(i, j int) bool { return rejections[i].Date.Before(rejections[j].Date) })
	keep := len(rejections) / 2
	dropped := len(rejections) - keep
	kept := rejections[len(rejections)-keep:]

	merged := make([]model.OutcomeEntry, 0, len(others)+keep)
	merged = append(merged, others...)
	merged = append(merged, kept...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	m.entries[entityID] = merged

	return dropped, nil
}
