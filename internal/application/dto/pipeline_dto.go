package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// DateLayout formato de fechas de calendario en la API.
const DateLayout = "2006-01-02"

// LinkedDocumentDTO referencia de navegación presupuesto ↔ factura.
type LinkedDocumentDTO struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Number string `json:"number,omitempty"`
}

// PipelineItemDTO documento del pipeline en respuestas.
type PipelineItemDTO struct {
	ID             string             `json:"id"`
	Kind           string             `json:"kind"` // quote|invoice
	Number         string             `json:"number"`
	Company        string             `json:"company"`
	Total          decimal.Decimal    `json:"total"`
	IssueDate      string             `json:"issue_date"`
	DueDate        string             `json:"due_date,omitempty"`
	IsOverdue      bool               `json:"is_overdue"`
	PaidPercentage *int               `json:"paid_percentage,omitempty"` // solo facturas
	LinkedDocument *LinkedDocumentDTO `json:"linked_document,omitempty"`
	Stage          pipeline.Stage     `json:"stage"`
	OwnerID        string             `json:"owner_id,omitempty"`
}

// StageTotalsDTO recuento e importe de un grupo.
type StageTotalsDTO struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// PipelineStatsDTO métricas del pipeline.
type PipelineStatsDTO struct {
	Draft          StageTotalsDTO  `json:"draft"`
	Sent           StageTotalsDTO  `json:"sent"`
	Approved       StageTotalsDTO  `json:"approved"`
	Invoiced       StageTotalsDTO  `json:"invoiced"`
	Paid           StageTotalsDTO  `json:"paid"`
	Rejected       StageTotalsDTO  `json:"rejected"`
	Overdue        StageTotalsDTO  `json:"overdue"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

// PipelineListResponse respuesta de GET /api/pipeline/items.
type PipelineListResponse struct {
	Items []PipelineItemDTO `json:"items"`
	Stats PipelineStatsDTO  `json:"stats"`
}

// CreatePipelineItemRequest body para POST /api/pipeline/items.
// La etapa no se acepta: todo documento nace en draft.
type CreatePipelineItemRequest struct {
	Kind           string             `json:"kind"`
	Number         string             `json:"number"`
	Company        string             `json:"company"`
	Total          decimal.Decimal    `json:"total"`
	IssueDate      string             `json:"issue_date"`
	DueDate        string             `json:"due_date,omitempty"`
	PaidPercentage *int               `json:"paid_percentage,omitempty"`
	LinkedDocument *LinkedDocumentDTO `json:"linked_document,omitempty"`
	OwnerID        string             `json:"owner_id,omitempty"` // vacío = usuario del token
}

// TransitionRequest body para POST /api/pipeline/items/:id/transition.
type TransitionRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// StageDescriptorDTO etapa del registro para los clientes.
type StageDescriptorDTO struct {
	Key                string   `json:"key"`
	Label              string   `json:"label"`
	Description        string   `json:"description"`
	Icon               string   `json:"icon"`
	Color              string   `json:"color"`
	Order              int      `json:"order"`
	AllowedTransitions []string `json:"allowed_transitions"`
}

// PipelineTransitionDTO entrada del historial de transiciones.
type PipelineTransitionDTO struct {
	ID        string         `json:"id"`
	ItemID    string         `json:"item_id"`
	UserID    string         `json:"user_id"`
	From      pipeline.Stage `json:"from"`
	To        pipeline.Stage `json:"to"`
	CreatedAt time.Time      `json:"created_at"`
}

// PipelineItemFromEntity convierte la entidad al DTO de respuesta.
func PipelineItemFromEntity(it *entity.PipelineItem) PipelineItemDTO {
	out := PipelineItemDTO{
		ID:             it.ID,
		Kind:           it.Kind,
		Number:         it.Number,
		Company:        it.Company,
		Total:          it.Total,
		IssueDate:      it.IssueDate.Format(DateLayout),
		IsOverdue:      it.IsOverdue,
		PaidPercentage: it.EffectivePaidPercentage(),
		Stage:          it.Stage,
		OwnerID:        it.OwnerID,
	}
	if it.DueDate != nil {
		out.DueDate = it.DueDate.Format(DateLayout)
	}
	if it.LinkedDocument != nil {
		out.LinkedDocument = &LinkedDocumentDTO{
			ID:     it.LinkedDocument.ID,
			Kind:   it.LinkedDocument.Kind,
			Number: it.LinkedDocument.Number,
		}
	}
	return out
}

// ToEntity convierte el DTO recibido del backend a la entidad de dominio.
func (d PipelineItemDTO) ToEntity() (entity.PipelineItem, error) {
	issue, err := time.Parse(DateLayout, d.IssueDate)
	if err != nil {
		return entity.PipelineItem{}, fmt.Errorf("documento %s: issue_date: %w", d.ID, err)
	}
	due, err := ParseOptionalDate(d.DueDate)
	if err != nil {
		return entity.PipelineItem{}, fmt.Errorf("documento %s: due_date: %w", d.ID, err)
	}
	out := entity.PipelineItem{
		ID:             d.ID,
		OwnerID:        d.OwnerID,
		Kind:           d.Kind,
		Number:         d.Number,
		Company:        d.Company,
		Total:          d.Total,
		IssueDate:      issue,
		DueDate:        due,
		IsOverdue:      d.IsOverdue,
		PaidPercentage: d.PaidPercentage,
		Stage:          d.Stage,
	}
	if d.LinkedDocument != nil {
		out.LinkedDocument = &entity.DocumentRef{
			ID:     d.LinkedDocument.ID,
			Kind:   d.LinkedDocument.Kind,
			Number: d.LinkedDocument.Number,
		}
	}
	return out, nil
}

// ParseOptionalDate interpreta una fecha opcional (vacío = nil).
func ParseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// StageDescriptorFrom convierte un descriptor del registro.
func StageDescriptorFrom(d pipeline.Descriptor) StageDescriptorDTO {
	allowed := make([]string, 0, len(d.Allowed))
	for _, s := range d.Allowed {
		allowed = append(allowed, s.String())
	}
	return StageDescriptorDTO{
		Key:                d.Key,
		Label:              d.Label,
		Description:        d.Description,
		Icon:               d.Icon,
		Color:              d.Color,
		Order:              int(d.Stage),
		AllowedTransitions: allowed,
	}
}

// StatsSnapshotDTO foto de métricas guardada por el job nocturno.
type StatsSnapshotDTO struct {
	ID             string                     `json:"id"`
	TakenAt        time.Time                  `json:"taken_at"`
	Counts         map[string]int             `json:"counts"`
	Amounts        map[string]decimal.Decimal `json:"amounts"`
	OverdueCount   int                        `json:"overdue_count"`
	OverdueAmount  decimal.Decimal            `json:"overdue_amount"`
	ConversionRate decimal.Decimal            `json:"conversion_rate"`
}

// StatsSnapshotFromEntity convierte la foto al DTO de respuesta.
func StatsSnapshotFromEntity(s *entity.PipelineStatsSnapshot) StatsSnapshotDTO {
	return StatsSnapshotDTO{
		ID:             s.ID,
		TakenAt:        s.TakenAt,
		Counts:         s.Counts,
		Amounts:        s.Amounts,
		OverdueCount:   s.OverdueCount,
		OverdueAmount:  s.OverdueAmount,
		ConversionRate: s.ConversionRate,
	}
}
