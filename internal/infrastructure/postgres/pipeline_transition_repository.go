package postgres

import (
	"context"
	"fmt"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

var _ repository.PipelineTransitionRepository = (*PipelineTransitionRepo)(nil)

// PipelineTransitionRepo historial de transiciones (usable con pool o tx).
type PipelineTransitionRepo struct {
	q Querier
}

// NewPipelineTransitionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPipelineTransitionRepository(q Querier) *PipelineTransitionRepo {
	return &PipelineTransitionRepo{q: q}
}

// Create registra una transición aplicada.
func (r *PipelineTransitionRepo) Create(ctx context.Context, t *entity.PipelineTransition) error {
	query := `
		INSERT INTO pipeline_transitions (id, item_id, company_id, user_id, from_stage, to_stage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.ItemID, t.CompanyID, nullIfEmpty(t.UserID), t.From.String(), t.To.String(), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline transition: %w", err)
	}
	return nil
}

// ListByItem historial de un documento, del más antiguo al más reciente.
func (r *PipelineTransitionRepo) ListByItem(ctx context.Context, itemID string) ([]*entity.PipelineTransition, error) {
	query := `
		SELECT id, item_id, company_id, COALESCE(user_id, ''), from_stage, to_stage, created_at
		FROM pipeline_transitions WHERE item_id = $1 ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline transitions: %w", err)
	}
	defer rows.Close()

	var list []*entity.PipelineTransition
	for rows.Next() {
		var t entity.PipelineTransition
		var from, to string
		if err := rows.Scan(&t.ID, &t.ItemID, &t.CompanyID, &t.UserID, &from, &to, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline transition: %w", err)
		}
		if t.From, err = pipeline.ParseStage(from); err != nil {
			return nil, err
		}
		if t.To, err = pipeline.ParseStage(to); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
