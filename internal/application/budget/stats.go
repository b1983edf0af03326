package budget

import (
	"github.com/shopspring/decimal"

	"github.com/lapublica/pipeline-api/internal/application/dto"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// StageTotals recuento e importe de un grupo de documentos.
type StageTotals struct {
	Count  int
	Amount decimal.Decimal
}

// Stats métricas del pipeline calculadas a partir de la lista completa.
type Stats struct {
	ByStage        map[pipeline.Stage]StageTotals
	Overdue        StageTotals
	ConversionRate decimal.Decimal // pagados / documentos que salieron de Draft, 4 decimales
}

// For devuelve los totales de una etapa (cero si no hay documentos).
func (s Stats) For(stage pipeline.Stage) StageTotals {
	if t, ok := s.ByStage[stage]; ok {
		return t
	}
	return StageTotals{Amount: decimal.Zero}
}

// Aggregate calcula recuento e importe por etapa, el grupo de vencidos y la
// tasa de conversión. Función pura: no guarda estado entre llamadas.
func Aggregate(items []entity.PipelineItem) Stats {
	stats := Stats{
		ByStage:        make(map[pipeline.Stage]StageTotals, len(pipeline.Stages())),
		Overdue:        StageTotals{Amount: decimal.Zero},
		ConversionRate: decimal.Zero,
	}
	for _, s := range pipeline.Stages() {
		stats.ByStage[s] = StageTotals{Amount: decimal.Zero}
	}

	leftDraft := 0
	for _, it := range items {
		t, ok := stats.ByStage[it.Stage]
		if !ok {
			continue
		}
		t.Count++
		t.Amount = t.Amount.Add(it.Total)
		stats.ByStage[it.Stage] = t

		if it.IsOverdue {
			stats.Overdue.Count++
			stats.Overdue.Amount = stats.Overdue.Amount.Add(it.Total)
		}
		if it.Stage != pipeline.StageDraft {
			leftDraft++
		}
	}

	if leftDraft > 0 {
		paid := decimal.NewFromInt(int64(stats.ByStage[pipeline.StagePaid].Count))
		stats.ConversionRate = paid.Div(decimal.NewFromInt(int64(leftDraft))).Round(4)
	}
	return stats
}

// DTO convierte las métricas a la forma de la API.
func (s Stats) DTO() dto.PipelineStatsDTO {
	conv := func(t StageTotals) dto.StageTotalsDTO {
		return dto.StageTotalsDTO{Count: t.Count, Amount: t.Amount}
	}
	return dto.PipelineStatsDTO{
		Draft:          conv(s.For(pipeline.StageDraft)),
		Sent:           conv(s.For(pipeline.StageSent)),
		Approved:       conv(s.For(pipeline.StageApproved)),
		Invoiced:       conv(s.For(pipeline.StageInvoiced)),
		Paid:           conv(s.For(pipeline.StagePaid)),
		Rejected:       conv(s.For(pipeline.StageRejected)),
		Overdue:        conv(s.Overdue),
		ConversionRate: s.ConversionRate,
	}
}
