package budget

import (
	"context"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

// Executor aplica un cambio de etapa en el sistema de registro.
// No reintenta: una transición fallida requiere que el usuario vuelva a confirmar.
// Los rechazos del backend se devuelven como *domain.TransitionError con el
// mensaje tal cual.
type Executor interface {
	Transition(ctx context.Context, itemID string, from, to pipeline.Stage) error
}

// ItemLoader obtiene la lista autoritativa de documentos del alcance visible.
type ItemLoader interface {
	LoadItems(ctx context.Context) ([]entity.PipelineItem, error)
}

// PipelineTxRunner ejecuta fn dentro de una transacción con repos atados a ella.
type PipelineTxRunner interface {
	RunPipeline(ctx context.Context, fn func(
		itemRepo repository.PipelineItemRepository,
		transitionRepo repository.PipelineTransitionRepository,
	) error) error
}

// ExecutorFunc adapta una función al puerto Executor.
type ExecutorFunc func(ctx context.Context, itemID string, from, to pipeline.Stage) error

func (f ExecutorFunc) Transition(ctx context.Context, itemID string, from, to pipeline.Stage) error {
	return f(ctx, itemID, from, to)
}
