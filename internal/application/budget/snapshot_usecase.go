package budget

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lapublica/pipeline-api/internal/application/dto"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

const snapshotConcurrency = 4 // empresas procesadas en paralelo

// SnapshotUseCase guarda fotos periódicas de las métricas del pipeline por empresa.
type SnapshotUseCase struct {
	items     *UseCase
	itemRepo  repository.PipelineItemRepository
	snapshots repository.StatsSnapshotRepository
	now       func() time.Time
}

// NewSnapshotUseCase construye el caso de uso.
func NewSnapshotUseCase(items *UseCase, itemRepo repository.PipelineItemRepository, snapshots repository.StatsSnapshotRepository) *SnapshotUseCase {
	return &SnapshotUseCase{
		items:     items,
		itemRepo:  itemRepo,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// Take calcula y guarda la foto de una empresa.
func (uc *SnapshotUseCase) Take(ctx context.Context, companyID string) (*entity.PipelineStatsSnapshot, error) {
	items, err := uc.items.Items(ctx, repository.PipelineItemFilter{CompanyID: companyID})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: documentos: %w", companyID, err)
	}
	stats := Aggregate(items)
	snap := &entity.PipelineStatsSnapshot{
		ID:             uuid.New().String(),
		CompanyID:      companyID,
		TakenAt:        uc.now(),
		Counts:         make(map[string]int),
		Amounts:        make(map[string]decimal.Decimal),
		OverdueCount:   stats.Overdue.Count,
		OverdueAmount:  stats.Overdue.Amount,
		ConversionRate: stats.ConversionRate,
	}
	for _, s := range pipeline.Stages() {
		t := stats.For(s)
		snap.Counts[s.String()] = t.Count
		snap.Amounts[s.String()] = t.Amount
	}
	if err := uc.snapshots.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("snapshot %s: guardar: %w", companyID, err)
	}
	return snap, nil
}

// TakeAll guarda la foto de todas las empresas con documentos.
// Devuelve cuántas se guardaron; el primer error cancela el resto.
func (uc *SnapshotUseCase) TakeAll(ctx context.Context) (int, error) {
	companies, err := uc.itemRepo.ListCompanyIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot: listar empresas: %w", err)
	}
	var saved atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)
	for _, companyID := range companies {
		g.Go(func() error {
			if _, err := uc.Take(gctx, companyID); err != nil {
				return err
			}
			saved.Add(1)
			log.Debug().Str("company_id", companyID).Msg("snapshot del pipeline guardado")
			return nil
		})
	}
	err = g.Wait()
	return int(saved.Load()), err
}

// History devuelve las últimas fotos de una empresa con el mismo límite que la API.
func (uc *SnapshotUseCase) History(ctx context.Context, companyID string, limit int) ([]*entity.PipelineStatsSnapshot, error) {
	q := dto.SnapshotQuery{Limit: limit}
	q.Normalize()
	return uc.snapshots.ListByCompany(ctx, companyID, q.Limit)
}
