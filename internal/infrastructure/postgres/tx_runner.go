package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lapublica/pipeline-api/internal/application/budget"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

var _ budget.PipelineTxRunner = (*TxRunner)(nil)

// TxRunner da a budget.UseCase los repos del pipeline atados a una misma
// transacción: el cambio de etapa y su fila de auditoría se confirman juntos.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunPipeline hace commit si fn devuelve nil y rollback en cualquier otro caso.
// El error de fn se devuelve sin envolver para que errors.Is siga viendo el sentinel.
func (r *TxRunner) RunPipeline(ctx context.Context, fn func(
	items repository.PipelineItemRepository,
	transitions repository.PipelineTransitionRepository,
) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(NewPipelineItemRepository(tx), NewPipelineTransitionRepository(tx))
	})
}
