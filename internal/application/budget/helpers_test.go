package budget_test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// ──────────────────────────────────────────────────────────────────────────────
// Dobles de prueba: backend en memoria que hace de Executor e ItemLoader
// ──────────────────────────────────────────────────────────────────────────────

type call struct {
	ItemID string
	From   pipeline.Stage
	To     pipeline.Stage
}

type fakeBackend struct {
	mu      sync.Mutex
	items   []entity.PipelineItem
	calls   []call
	failure error         // si no es nil, Transition falla con este error
	gate    chan struct{} // si no es nil, Transition espera a que se cierre
	entered chan struct{} // recibe una señal al entrar en Transition
	loads   int
}

func newFakeBackend(items ...entity.PipelineItem) *fakeBackend {
	return &fakeBackend{items: items}
}

func (f *fakeBackend) LoadItems(_ context.Context) ([]entity.PipelineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	out := make([]entity.PipelineItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeBackend) Transition(_ context.Context, itemID string, from, to pipeline.Stage) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{ItemID: itemID, From: from, To: to})
	gate, entered, failure := f.gate, f.entered, f.failure
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if failure != nil {
		return failure
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items[i].Stage = to
		}
	}
	return nil
}

func (f *fakeBackend) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func item(id string, stage pipeline.Stage, total int64) entity.PipelineItem {
	return entity.PipelineItem{
		ID:        id,
		Kind:      entity.KindQuote,
		Number:    "PRE-2024-" + id,
		Company:   "Ajuntament de Girona",
		Total:     decimal.NewFromInt(total),
		IssueDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Stage:     stage,
	}
}

func eur(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
