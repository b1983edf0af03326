package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// Tipos de documento del pipeline.
const (
	KindQuote   = "quote"   // Presupuesto
	KindInvoice = "invoice" // Factura
)

// DocumentRef referencia de navegación a otro documento (presupuesto ↔ factura).
// No controla el ciclo de vida de ninguno de los dos.
type DocumentRef struct {
	ID     string
	Kind   string
	Number string
}

// PipelineItem presupuesto o factura seguido a través de las etapas del pipeline.
// Stage es el único campo mutable que dirige el flujo.
type PipelineItem struct {
	ID             string
	CompanyID      string // tenant (empresa del token)
	OwnerID        string // usuario propietario
	Kind           string
	Number         string
	Company        string // contraparte
	Total          decimal.Decimal
	IssueDate      time.Time
	DueDate        *time.Time
	IsOverdue      bool
	PaidPercentage *int
	LinkedDocument *DocumentRef
	Stage          pipeline.Stage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsInvoice indica si el documento es una factura.
func (i *PipelineItem) IsInvoice() bool { return i.Kind == KindInvoice }

// OverdueAt calcula si el documento está vencido en el instante now:
// tiene fecha de vencimiento anterior al día de now y no está pagado.
func (i *PipelineItem) OverdueAt(now time.Time) bool {
	if i.DueDate == nil || i.Stage == pipeline.StagePaid {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	due := time.Date(i.DueDate.Year(), i.DueDate.Month(), i.DueDate.Day(), 0, 0, 0, 0, now.Location())
	return due.Before(today)
}

// EffectivePaidPercentage devuelve el porcentaje pagado solo para facturas.
func (i *PipelineItem) EffectivePaidPercentage() *int {
	if !i.IsInvoice() {
		return nil
	}
	return i.PaidPercentage
}

// PipelineTransition registro de auditoría de un cambio de etapa aplicado.
type PipelineTransition struct {
	ID        string
	ItemID    string
	CompanyID string
	UserID    string
	From      pipeline.Stage
	To        pipeline.Stage
	CreatedAt time.Time
}

// PipelineStatsSnapshot foto diaria de las métricas del pipeline de una empresa.
type PipelineStatsSnapshot struct {
	ID             string
	CompanyID      string
	TakenAt        time.Time
	Counts         map[string]int
	Amounts        map[string]decimal.Decimal
	OverdueCount   int
	OverdueAmount  decimal.Decimal
	ConversionRate decimal.Decimal
}
