package budget

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// Store copia de trabajo en memoria de los documentos visibles.
//
// La lista solo se reasigna completa (Replace) o con copy-on-write (Patch);
// los lectores nunca ven una lista a medio modificar. Las vistas derivadas se
// recalculan en cada lectura.
type Store struct {
	mu    sync.RWMutex
	items []entity.PipelineItem
}

// NewStore construye el store con una lista inicial (puede ser nil).
func NewStore(items []entity.PipelineItem) *Store {
	s := &Store{}
	s.Replace(items)
	return s
}

// Replace sustituye la lista completa tras un viaje de ida y vuelta al backend.
func (s *Store) Replace(items []entity.PipelineItem) {
	next := make([]entity.PipelineItem, len(items))
	copy(next, items)
	s.mu.Lock()
	s.items = next
	s.mu.Unlock()
}

// Patch cambia la etapa de un documento construyendo una lista nueva.
// Un documento cobrado deja de estar vencido. Devuelve false si el id no
// está en la lista.
func (s *Store) Patch(id string, stage pipeline.Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	next := make([]entity.PipelineItem, len(s.items))
	copy(next, s.items)
	next[idx].Stage = stage
	if stage == pipeline.StagePaid {
		next[idx].IsOverdue = false
	}
	s.items = next
	return true
}

// Snapshot devuelve una copia de la lista actual.
func (s *Store) Snapshot() []entity.PipelineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.PipelineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len número de documentos.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Find busca un documento por id.
func (s *Store) Find(id string) (entity.PipelineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return entity.PipelineItem{}, false
}

// ItemsInStage filtra por etapa conservando el orden de inserción.
func (s *Store) ItemsInStage(stage pipeline.Stage) []entity.PipelineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.PipelineItem, 0)
	for _, it := range s.items {
		if it.Stage == stage {
			out = append(out, it)
		}
	}
	return out
}

// TotalAmount suma Total de los documentos de la etapa.
func (s *Store) TotalAmount(stage pipeline.Stage) decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.ItemsInStage(stage) {
		total = total.Add(it.Total)
	}
	return total
}

// Stats agrega las métricas de la lista actual.
func (s *Store) Stats() Stats {
	return Aggregate(s.Snapshot())
}
