package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

var _ repository.PipelineItemRepository = (*PipelineItemRepo)(nil)

// PipelineItemRepo implementación de PipelineItemRepository (usable con pool o tx).
type PipelineItemRepo struct {
	q Querier
}

// NewPipelineItemRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPipelineItemRepository(q Querier) *PipelineItemRepo {
	return &PipelineItemRepo{q: q}
}

const pipelineItemColumns = `
	id, company_id, owner_id, kind, number, company, total,
	issue_date, due_date, paid_percentage,
	linked_id, linked_kind, linked_number,
	stage, created_at, updated_at`

// Create persiste un documento nuevo.
func (r *PipelineItemRepo) Create(ctx context.Context, it *entity.PipelineItem) error {
	var linkedID, linkedKind, linkedNumber *string
	if it.LinkedDocument != nil {
		linkedID = nullIfEmpty(it.LinkedDocument.ID)
		linkedKind = nullIfEmpty(it.LinkedDocument.Kind)
		linkedNumber = nullIfEmpty(it.LinkedDocument.Number)
	}
	query := `
		INSERT INTO pipeline_items (` + pipelineItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.q.Exec(ctx, query,
		it.ID, it.CompanyID, it.OwnerID, it.Kind, it.Number, it.Company, it.Total,
		it.IssueDate, it.DueDate, it.PaidPercentage,
		linkedID, linkedKind, linkedNumber,
		it.Stage.String(), it.CreatedAt, it.UpdatedAt,
	)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: el número %s ya existe", domain.ErrConflict, it.Number)
	case isCheckViolation(err):
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, constraintName(err))
	case isInvalidText(err):
		return fmt.Errorf("%w: empresa o responsable no son UUID", domain.ErrInvalidInput)
	case err != nil:
		return fmt.Errorf("insert pipeline item: %w", err)
	}
	return nil
}

// GetByID obtiene un documento por ID; (nil, nil) si no existe.
func (r *PipelineItemRepo) GetByID(ctx context.Context, id string) (*entity.PipelineItem, error) {
	query := `SELECT ` + pipelineItemColumns + ` FROM pipeline_items WHERE id = $1`
	it, err := scanPipelineItem(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pipeline item: %w", err)
	}
	return it, nil
}

// List devuelve los documentos del alcance en orden de inserción.
func (r *PipelineItemRepo) List(ctx context.Context, f repository.PipelineItemFilter) ([]*entity.PipelineItem, error) {
	where := []string{"company_id = $1"}
	args := []any{f.CompanyID}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	query := `SELECT ` + pipelineItemColumns + ` FROM pipeline_items
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq`
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, listError(err)
	}
	defer rows.Close()

	var list []*entity.PipelineItem
	for rows.Next() {
		it, err := scanPipelineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline item: %w", err)
		}
		list = append(list, it)
	}
	if err := rows.Err(); err != nil {
		return nil, listError(err)
	}
	return list, nil
}

// listError: pgx puede devolver el 22P02 al consultar o al iterar.
func listError(err error) error {
	if isInvalidText(err) {
		return fmt.Errorf("%w: empresa o responsable no son UUID", domain.ErrInvalidInput)
	}
	return fmt.Errorf("list pipeline items: %w", err)
}

// UpdateStage cambia la etapa solo si sigue siendo from (compare-and-set).
func (r *PipelineItemRepo) UpdateStage(ctx context.Context, companyID, id string, from, to pipeline.Stage, at time.Time) error {
	query := `
		UPDATE pipeline_items SET stage = $4, updated_at = $5
		WHERE id = $1 AND company_id = $2 AND stage = $3`
	cmd, err := r.q.Exec(ctx, query, id, companyID, from.String(), to.String(), at)
	if isInvalidText(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update pipeline stage: %w", err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	err = r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pipeline_items WHERE id = $1 AND company_id = $2)`,
		id, companyID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check pipeline item: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStaleState
}

// ListCompanyIDs devuelve las empresas con al menos un documento.
func (r *PipelineItemRepo) ListCompanyIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT company_id FROM pipeline_items ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("list pipeline companies: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan company id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanPipelineItem(row pgx.Row) (*entity.PipelineItem, error) {
	var it entity.PipelineItem
	var stage string
	var linkedID, linkedKind, linkedNumber *string
	err := row.Scan(
		&it.ID, &it.CompanyID, &it.OwnerID, &it.Kind, &it.Number, &it.Company, &it.Total,
		&it.IssueDate, &it.DueDate, &it.PaidPercentage,
		&linkedID, &linkedKind, &linkedNumber,
		&stage, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if it.Stage, err = pipeline.ParseStage(stage); err != nil {
		return nil, fmt.Errorf("documento %s: %w", it.ID, err)
	}
	if linkedID != nil {
		it.LinkedDocument = &entity.DocumentRef{
			ID:     *linkedID,
			Kind:   derefStr(linkedKind),
			Number: derefStr(linkedNumber),
		}
	}
	return &it, nil
}
