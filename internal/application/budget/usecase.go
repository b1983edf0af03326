package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lapublica/pipeline-api/internal/application/dto"
	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

// UseCase casos de uso del pipeline en el lado del servidor (sistema de registro).
type UseCase struct {
	itemRepo       repository.PipelineItemRepository
	transitionRepo repository.PipelineTransitionRepository
	tx             PipelineTxRunner
	now            func() time.Time
}

// NewUseCase construye el caso de uso.
func NewUseCase(
	itemRepo repository.PipelineItemRepository,
	transitionRepo repository.PipelineTransitionRepository,
	tx PipelineTxRunner,
) *UseCase {
	return &UseCase{
		itemRepo:       itemRepo,
		transitionRepo: transitionRepo,
		tx:             tx,
		now:            time.Now,
	}
}

// Stages devuelve el registro de etapas para los clientes.
func (uc *UseCase) Stages() []dto.StageDescriptorDTO {
	out := make([]dto.StageDescriptorDTO, 0)
	for _, d := range pipeline.Descriptors() {
		out = append(out, dto.StageDescriptorFrom(d))
	}
	return out
}

// Items devuelve los documentos del alcance con IsOverdue calculado al momento de la lectura.
func (uc *UseCase) Items(ctx context.Context, filter repository.PipelineItemFilter) ([]entity.PipelineItem, error) {
	if filter.CompanyID == "" {
		return nil, domain.ErrInvalidInput
	}
	if filter.Kind != "" && filter.Kind != entity.KindQuote && filter.Kind != entity.KindInvoice {
		return nil, domain.ErrInvalidInput
	}
	list, err := uc.itemRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	out := make([]entity.PipelineItem, 0, len(list))
	for _, it := range list {
		item := *it
		item.IsOverdue = item.OverdueAt(now)
		out = append(out, item)
	}
	return out, nil
}

// List devuelve documentos y métricas del alcance.
func (uc *UseCase) List(ctx context.Context, filter repository.PipelineItemFilter) (*dto.PipelineListResponse, error) {
	items, err := uc.Items(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := &dto.PipelineListResponse{
		Items: make([]dto.PipelineItemDTO, 0, len(items)),
		Stats: Aggregate(items).DTO(),
	}
	for i := range items {
		resp.Items = append(resp.Items, dto.PipelineItemFromEntity(&items[i]))
	}
	return resp, nil
}

// Get obtiene un documento de la empresa.
func (uc *UseCase) Get(ctx context.Context, companyID, id string) (*dto.PipelineItemDTO, error) {
	item, err := uc.load(ctx, uc.itemRepo, companyID, id)
	if err != nil {
		return nil, err
	}
	out := dto.PipelineItemFromEntity(item)
	return &out, nil
}

// Create registra un documento nuevo. Siempre nace en Draft.
func (uc *UseCase) Create(ctx context.Context, companyID, userID string, in dto.CreatePipelineItemRequest) (*dto.PipelineItemDTO, error) {
	if companyID == "" {
		return nil, domain.ErrUnauthorized
	}
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	if kind != entity.KindQuote && kind != entity.KindInvoice {
		return nil, fmt.Errorf("%w: kind debe ser quote o invoice", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Number) == "" || strings.TrimSpace(in.Company) == "" {
		return nil, fmt.Errorf("%w: number y company son obligatorios", domain.ErrInvalidInput)
	}
	if in.Total.IsNegative() {
		return nil, fmt.Errorf("%w: total no puede ser negativo", domain.ErrInvalidInput)
	}
	if in.PaidPercentage != nil && (*in.PaidPercentage < 0 || *in.PaidPercentage > 100) {
		return nil, fmt.Errorf("%w: paid_percentage debe estar entre 0 y 100", domain.ErrInvalidInput)
	}
	issue, err := time.Parse(dto.DateLayout, in.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: issue_date (%s)", domain.ErrInvalidInput, dto.DateLayout)
	}
	due, err := dto.ParseOptionalDate(in.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: due_date (%s)", domain.ErrInvalidInput, dto.DateLayout)
	}
	owner := strings.TrimSpace(in.OwnerID)
	if owner == "" {
		owner = userID
	} else if _, err := uuid.Parse(owner); err != nil {
		return nil, fmt.Errorf("%w: owner_id no es un UUID", domain.ErrInvalidInput)
	}

	now := uc.now()
	item := &entity.PipelineItem{
		ID:             uuid.New().String(),
		CompanyID:      companyID,
		OwnerID:        owner,
		Kind:           kind,
		Number:         strings.TrimSpace(in.Number),
		Company:        strings.TrimSpace(in.Company),
		Total:          in.Total,
		IssueDate:      issue,
		DueDate:        due,
		PaidPercentage: in.PaidPercentage,
		Stage:          pipeline.StageDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.LinkedDocument != nil && in.LinkedDocument.ID != "" {
		item.LinkedDocument = &entity.DocumentRef{
			ID:     in.LinkedDocument.ID,
			Kind:   in.LinkedDocument.Kind,
			Number: in.LinkedDocument.Number,
		}
	}
	if err := uc.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	item.IsOverdue = item.OverdueAt(now)
	out := dto.PipelineItemFromEntity(item)
	return &out, nil
}

// Transition aplica un paso from → to.
//
// Retorna:
//   - domain.ErrIllegalTransition si el par no está en la tabla.
//   - domain.ErrNotFound / domain.ErrForbidden si el documento no existe o es de otra empresa.
//   - domain.ErrStaleState si la etapa actual ya no es from (otro usuario lo movió).
func (uc *UseCase) Transition(ctx context.Context, companyID, userID, itemID string, from, to pipeline.Stage) (*dto.PipelineItemDTO, error) {
	if !pipeline.CanTransition(from, to) {
		return nil, domain.ErrIllegalTransition
	}
	var updated *entity.PipelineItem
	err := uc.tx.RunPipeline(ctx, func(
		itemRepo repository.PipelineItemRepository,
		transitionRepo repository.PipelineTransitionRepository,
	) error {
		item, err := uc.load(ctx, itemRepo, companyID, itemID)
		if err != nil {
			return err
		}
		if item.Stage != from {
			return domain.ErrStaleState
		}
		now := uc.now()
		if err := itemRepo.UpdateStage(ctx, companyID, itemID, from, to, now); err != nil {
			return err
		}
		if err := transitionRepo.Create(ctx, &entity.PipelineTransition{
			ID:        uuid.New().String(),
			ItemID:    itemID,
			CompanyID: companyID,
			UserID:    userID,
			From:      from,
			To:        to,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		item.Stage = to
		item.UpdatedAt = now
		item.IsOverdue = item.OverdueAt(now)
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := dto.PipelineItemFromEntity(updated)
	return &out, nil
}

// History devuelve el historial de transiciones de un documento.
func (uc *UseCase) History(ctx context.Context, companyID, itemID string) ([]dto.PipelineTransitionDTO, error) {
	if _, err := uc.load(ctx, uc.itemRepo, companyID, itemID); err != nil {
		return nil, err
	}
	list, err := uc.transitionRepo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PipelineTransitionDTO, 0, len(list))
	for _, t := range list {
		out = append(out, dto.PipelineTransitionDTO{
			ID:        t.ID,
			ItemID:    t.ItemID,
			UserID:    t.UserID,
			From:      t.From,
			To:        t.To,
			CreatedAt: t.CreatedAt,
		})
	}
	return out, nil
}

func (uc *UseCase) load(ctx context.Context, repo repository.PipelineItemRepository, companyID, id string) (*entity.PipelineItem, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	item, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if item.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	item.IsOverdue = item.OverdueAt(uc.now())
	return item, nil
}
