package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
)

// ReportData datos del informe PDF del pipeline.
type ReportData struct {
	CompanyID   string
	GeneratedAt time.Time
	Items       []entity.PipelineItem
	Stats       Stats
}

// ReportGenerator puerto del generador de PDF (lo implementa infrastructure/pdf).
type ReportGenerator interface {
	GeneratePipelineReport(ctx context.Context, data ReportData) ([]byte, error)
}

// ReportUseCase genera el informe PDF del pipeline de una empresa.
type ReportUseCase struct {
	items     *UseCase
	generator ReportGenerator
	now       func() time.Time
}

// NewReportUseCase construye el caso de uso.
func NewReportUseCase(items *UseCase, generator ReportGenerator) *ReportUseCase {
	return &ReportUseCase{items: items, generator: generator, now: time.Now}
}

// Download devuelve los bytes del PDF y el nombre de archivo sugerido.
func (uc *ReportUseCase) Download(ctx context.Context, filter repository.PipelineItemFilter) ([]byte, string, error) {
	items, err := uc.items.Items(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	now := uc.now()
	pdf, err := uc.generator.GeneratePipelineReport(ctx, ReportData{
		CompanyID:   filter.CompanyID,
		GeneratedAt: now,
		Items:       items,
		Stats:       Aggregate(items),
	})
	if err != nil {
		return nil, "", fmt.Errorf("informe pipeline: %w", err)
	}
	return pdf, fmt.Sprintf("pipeline-%s.pdf", now.Format("20060102")), nil
}
