package budget_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Repositorios en memoria
// ──────────────────────────────────────────────────────────────────────────────

type memItems struct {
	mu    sync.Mutex
	order []string
	byID  map[string]entity.PipelineItem
	// hook se ejecuta antes de UpdateStage (simula otro usuario moviendo el documento).
	hook func()
}

func newMemItems(items ...entity.PipelineItem) *memItems {
	m := &memItems{byID: make(map[string]entity.PipelineItem)}
	for _, it := range items {
		_ = m.Create(context.Background(), &it)
	}
	return m
}

func (m *memItems) Create(_ context.Context, it *entity.PipelineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[it.ID]; ok {
		return domain.ErrConflict
	}
	m.order = append(m.order, it.ID)
	m.byID[it.ID] = *it
	return nil
}

func (m *memItems) GetByID(_ context.Context, id string) (*entity.PipelineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (m *memItems) List(_ context.Context, f repository.PipelineItemFilter) ([]*entity.PipelineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.PipelineItem, 0)
	for _, id := range m.order {
		it := m.byID[id]
		if it.CompanyID != f.CompanyID {
			continue
		}
		if f.OwnerID != "" && it.OwnerID != f.OwnerID {
			continue
		}
		if f.Kind != "" && it.Kind != f.Kind {
			continue
		}
		out = append(out, &it)
	}
	return out, nil
}

func (m *memItems) UpdateStage(_ context.Context, companyID, id string, from, to pipeline.Stage, at time.Time) error {
	if m.hook != nil {
		m.hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.byID[id]
	if !ok || it.CompanyID != companyID {
		return domain.ErrNotFound
	}
	if it.Stage != from {
		return domain.ErrStaleState
	}
	it.Stage = to
	it.UpdatedAt = at
	m.byID[id] = it
	return nil
}

func (m *memItems) ListCompanyIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, id := range m.order {
		c := m.byID[id].CompanyID
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memItems) force(id string, stage pipeline.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.byID[id]
	it.Stage = stage
	m.byID[id] = it
}

type memTransitions struct {
	mu   sync.Mutex
	list []entity.PipelineTransition
}

func (m *memTransitions) Create(_ context.Context, t *entity.PipelineTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, *t)
	return nil
}

func (m *memTransitions) ListByItem(_ context.Context, itemID string) ([]*entity.PipelineTransition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.PipelineTransition, 0)
	for i := range m.list {
		if m.list[i].ItemID == itemID {
			t := m.list[i]
			out = append(out, &t)
		}
	}
	return out, nil
}

// memTx ejecuta fn con los mismos repos; cuenta las transacciones abiertas.
type memTx struct {
	items       *memItems
	transitions *memTransitions
	runs        int
}

func (tx *memTx) RunPipeline(ctx context.Context, fn func(
	itemRepo repository.PipelineItemRepository,
	transitionRepo repository.PipelineTransitionRepository,
) error) error {
	tx.runs++
	return fn(tx.items, tx.transitions)
}

type memSnapshots struct {
	mu    sync.Mutex
	saved []entity.PipelineStatsSnapshot
	fail  error
	limit int
}

func (m *memSnapshots) Save(_ context.Context, s *entity.PipelineStatsSnapshot) error {
	if m.fail != nil {
		return m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, *s)
	return nil
}

func (m *memSnapshots) ListByCompany(_ context.Context, companyID string, limit int) ([]*entity.PipelineStatsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	out := make([]*entity.PipelineStatsSnapshot, 0)
	for i := len(m.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if m.saved[i].CompanyID == companyID {
			s := m.saved[i]
			out = append(out, &s)
		}
	}
	return out, nil
}

var (
	_ repository.PipelineItemRepository       = (*memItems)(nil)
	_ repository.PipelineTransitionRepository = (*memTransitions)(nil)
	_ repository.StatsSnapshotRepository      = (*memSnapshots)(nil)
)
