package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lapublica/pipeline-api/internal/application/budget"
	"github.com/lapublica/pipeline-api/internal/application/dto"
	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

// PipelineService lo que el handler necesita de budget.UseCase.
type PipelineService interface {
	Stages() []dto.StageDescriptorDTO
	List(ctx context.Context, filter repository.PipelineItemFilter) (*dto.PipelineListResponse, error)
	Get(ctx context.Context, companyID, id string) (*dto.PipelineItemDTO, error)
	Create(ctx context.Context, companyID, userID string, in dto.CreatePipelineItemRequest) (*dto.PipelineItemDTO, error)
	Transition(ctx context.Context, companyID, userID, itemID string, from, to pipeline.Stage) (*dto.PipelineItemDTO, error)
	History(ctx context.Context, companyID, itemID string) ([]dto.PipelineTransitionDTO, error)
}

// ReportService lo implementa budget.ReportUseCase.
type ReportService interface {
	Download(ctx context.Context, filter repository.PipelineItemFilter) ([]byte, string, error)
}

// SnapshotService lo implementa budget.SnapshotUseCase.
type SnapshotService interface {
	History(ctx context.Context, companyID string, limit int) ([]*entity.PipelineStatsSnapshot, error)
}

var (
	_ PipelineService = (*budget.UseCase)(nil)
	_ ReportService   = (*budget.ReportUseCase)(nil)
	_ SnapshotService = (*budget.SnapshotUseCase)(nil)
)

// PipelineHandler maneja las peticiones HTTP del pipeline de presupuestos y facturas (protegido).
type PipelineHandler struct {
	uc        PipelineService
	reports   ReportService
	snapshots SnapshotService
}

// NewPipelineHandler construye el handler. reports y snapshots pueden ser nil.
func NewPipelineHandler(uc PipelineService, reports ReportService, snapshots SnapshotService) *PipelineHandler {
	return &PipelineHandler{uc: uc, reports: reports, snapshots: snapshots}
}

// Stages devuelve el registro de etapas.
// GET /api/pipeline/stages
func (h *PipelineHandler) Stages(c *fiber.Ctx) error {
	return c.JSON(h.uc.Stages())
}

// List devuelve los documentos visibles y sus métricas.
// GET /api/pipeline/items?owner_id=&kind=
func (h *PipelineHandler) List(c *fiber.Ctx) error {
	filter, err := scopeFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	resp, err := h.uc.List(c.Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// Create registra un documento nuevo en Draft.
// POST /api/pipeline/items
func (h *PipelineHandler) Create(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	userID := GetUserID(c)
	if companyID == "" || userID == "" {
		return writeError(c, domain.ErrUnauthorized)
	}
	var in dto.CreatePipelineItemRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.Create(c.Context(), companyID, userID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID devuelve un documento.
// GET /api/pipeline/items/:id
func (h *PipelineHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return writeError(c, domain.ErrUnauthorized)
	}
	id, err := itemID(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.Get(c.Context(), companyID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Transition aplica un cambio de etapa confirmado por el usuario.
// POST /api/pipeline/items/:id/transition {from, to}
func (h *PipelineHandler) Transition(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return writeError(c, domain.ErrUnauthorized)
	}
	id, err := itemID(c)
	if err != nil {
		return writeError(c, err)
	}
	var in dto.TransitionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	from, err := pipeline.ParseStage(in.From)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	to, err := pipeline.ParseStage(in.To)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	out, err := h.uc.Transition(c.Context(), companyID, GetUserID(c), id, from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// History historial de transiciones de un documento.
// GET /api/pipeline/items/:id/history
func (h *PipelineHandler) History(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return writeError(c, domain.ErrUnauthorized)
	}
	id, err := itemID(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.History(c.Context(), companyID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Report descarga el informe PDF del pipeline.
// GET /api/pipeline/report.pdf?owner_id=&kind=
func (h *PipelineHandler) Report(c *fiber.Ctx) error {
	if h.reports == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_AVAILABLE", Message: "informe no disponible"})
	}
	filter, err := scopeFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	pdf, filename, err := h.reports.Download(c.Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdf)
}

// Snapshots últimas fotos de métricas de la empresa.
// GET /api/pipeline/snapshots?limit= (20 por defecto)
func (h *PipelineHandler) Snapshots(c *fiber.Ctx) error {
	if h.snapshots == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_AVAILABLE", Message: "snapshots desactivados (MONGO_URI vacío)"})
	}
	companyID := GetCompanyID(c)
	if companyID == "" {
		return writeError(c, domain.ErrUnauthorized)
	}
	var q dto.SnapshotQuery
	if err := c.QueryParser(&q); err != nil {
		return writeError(c, fmt.Errorf("%w: limit", domain.ErrInvalidInput))
	}
	q.Normalize()
	list, err := h.snapshots.History(c.Context(), companyID, q.Limit)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.StatsSnapshotDTO, 0, len(list))
	for _, s := range list {
		out = append(out, dto.StatsSnapshotFromEntity(s))
	}
	return c.JSON(out)
}

func scopeFilter(c *fiber.Ctx) (repository.PipelineItemFilter, error) {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return repository.PipelineItemFilter{}, domain.ErrUnauthorized
	}
	owner := c.Query("owner_id")
	if owner != "" {
		if _, err := uuid.Parse(owner); err != nil {
			return repository.PipelineItemFilter{}, fmt.Errorf("%w: owner_id no es un UUID", domain.ErrInvalidInput)
		}
	}
	return repository.PipelineItemFilter{
		CompanyID: companyID,
		OwnerID:   owner,
		Kind:      c.Query("kind"),
	}, nil
}

// itemID valida el :id de la ruta. Un id que no es UUID no puede existir.
func itemID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", domain.ErrNotFound
	}
	return id, nil
}

// writeError traduce los errores de dominio a dto.ErrorResponse.
func writeError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		status, code = fiber.StatusUnprocessableEntity, "ILLEGAL_TRANSITION"
	case errors.Is(err, domain.ErrStaleState):
		status, code = fiber.StatusConflict, "STALE_STATE"
	case errors.Is(err, domain.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		status, code = fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrConflict):
		status, code = fiber.StatusConflict, "CONFLICT"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}
