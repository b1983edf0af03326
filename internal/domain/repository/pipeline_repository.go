package repository

import (
	"context"
	"time"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// PipelineItemFilter alcance visible de una consulta de documentos.
// CompanyID es obligatorio; OwnerID y Kind son opcionales.
type PipelineItemFilter struct {
	CompanyID string
	OwnerID   string
	Kind      string
}

// PipelineItemRepository puerto de persistencia de los documentos del pipeline.
type PipelineItemRepository interface {
	Create(ctx context.Context, item *entity.PipelineItem) error
	// GetByID devuelve (nil, nil) si no existe.
	GetByID(ctx context.Context, id string) (*entity.PipelineItem, error)
	// List devuelve los documentos del alcance en orden de inserción.
	List(ctx context.Context, filter PipelineItemFilter) ([]*entity.PipelineItem, error)
	// UpdateStage cambia la etapa solo si la etapa actual sigue siendo from.
	// Devuelve domain.ErrNotFound si el documento no existe y
	// domain.ErrStaleState si otro usuario ya lo movió.
	UpdateStage(ctx context.Context, companyID, id string, from, to pipeline.Stage, at time.Time) error
	// ListCompanyIDs devuelve las empresas con al menos un documento.
	ListCompanyIDs(ctx context.Context) ([]string, error)
}

// PipelineTransitionRepository historial de transiciones aplicadas.
type PipelineTransitionRepository interface {
	Create(ctx context.Context, t *entity.PipelineTransition) error
	ListByItem(ctx context.Context, itemID string) ([]*entity.PipelineTransition, error)
}

// StatsSnapshotRepository almacén de fotos periódicas de métricas.
type StatsSnapshotRepository interface {
	Save(ctx context.Context, snapshot *entity.PipelineStatsSnapshot) error
	ListByCompany(ctx context.Context, companyID string, limit int) ([]*entity.PipelineStatsSnapshot, error)
}
