package rewards

import (
	"context"
	"sort"
	"sync"

	"github.com/park285/cheese-puzzle/internal/domain"
)

// memLedger keeps profiles and results in process. Used when no database is
// configured.
type memLedger struct {
	mu sync.RWMutex

	nextID    int64
	bySession map[string]*domain.PuzzleResult
	byPlayer  map[string][]*domain.PuzzleResult
	profiles  map[string]*domain.PuzzleProfile
}

func NewMemoryLedger() Ledger {
	return &memLedger{
		bySession: make(map[string]*domain.PuzzleResult),
		byPlayer:  make(map[string][]*domain.PuzzleResult),
		profiles:  make(map[string]*domain.PuzzleProfile),
	}
}

func (m *memLedger) Profile(ctx context.Context, playerID string) (*domain.PuzzleProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[playerID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memLedger) Record(ctx context.Context, result *domain.PuzzleResult, profile *domain.PuzzleProfile) error {
	if result == nil || profile == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySession[result.SessionID]; exists {
		return ErrDuplicateResult
	}

	m.nextID++
	res := *result
	res.ID = m.nextID
	res.MovesUCI = append([]string(nil), result.MovesUCI...)
	m.bySession[res.SessionID] = &res
	m.byPlayer[res.PlayerID] = append(m.byPlayer[res.PlayerID], &res)

	prof := *profile
	if old, ok := m.profiles[prof.PlayerID]; ok && !old.CreatedAt.IsZero() {
		prof.CreatedAt = old.CreatedAt
	}
	m.profiles[prof.PlayerID] = &prof
	result.ID = res.ID
	return nil
}

func (m *memLedger) Recent(ctx context.Context, playerID string, limit int) ([]*domain.PuzzleResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byPlayer[playerID]
	if len(list) == 0 {
		return []*domain.PuzzleResult{}, nil
	}
	items := make([]*domain.PuzzleResult, 0, len(list))
	for _, r := range list {
		cp := *r
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SolvedAt.Equal(items[j].SolvedAt) {
			return items[i].SolvedAt.After(items[j].SolvedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
