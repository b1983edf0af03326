// Package pdf genera el informe del pipeline de presupuestos y facturas.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Informe del pipeline  │  Empresa + Fecha           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: Etapa | Documentos | Importe                      │
//	│  Vencido / Tasa de conversión                               │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DETALLE: Número | Cliente | Tipo | Etapa | Vence | Total   │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strconv"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/lapublica/pipeline-api/internal/application/budget"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/pkg/money"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorDanger  = &props.Color{Red: 239, Green: 68, Blue: 68}
)

// ── Generator ─────────────────────────────────────────────────────────────────

var _ budget.ReportGenerator = (*MarotoPDFGenerator)(nil)

// MarotoPDFGenerator implementa budget.ReportGenerator usando Maroto v2.
type MarotoPDFGenerator struct {
	money *money.Formatter
}

// NewMarotoPDFGenerator construye el generador.
func NewMarotoPDFGenerator(f *money.Formatter) *MarotoPDFGenerator {
	if f == nil {
		f = money.Default()
	}
	return &MarotoPDFGenerator{money: f}
}

// GeneratePipelineReport genera el PDF y devuelve sus bytes.
func (g *MarotoPDFGenerator) GeneratePipelineReport(ctx context.Context, data budget.ReportData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Informe del pipeline", true).
		WithAuthor("La Pública", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(data))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	m.AddRows(sectionTitle("RESUMEN"))
	m.AddRows(summaryHeaderRow())
	m.AddRows(g.summaryRows(data.Stats)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.kpiRow(data.Stats))

	m.AddRows(line.NewRow(3))
	m.AddRows(sectionTitle(fmt.Sprintf("DOCUMENTOS (%d)", len(data.Items))))
	m.AddRows(itemsHeaderRow())
	m.AddRows(g.itemRows(data.Items)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(data budget.ReportData) core.Row {
	return row.New(16).Add(
		col.New(7).Add(
			text.New("Pipeline de presupuestos y facturas", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
		),
		col.New(5).Add(
			text.New("Empresa: "+nonEmpty(data.CompanyID, "-"), props.Text{
				Size: 8, Align: align.Right, Top: 2, Color: colorGray,
			}),
			text.New("Generado: "+data.GeneratedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 8, Color: colorGray,
			}),
		),
	)
}

func sectionTitle(s string) core.Row {
	return row.New(7).Add(col.New(12).Add(
		text.New(s, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2}),
	))
}

func summaryHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Top: 1, Left: 1, Right: 1,
		}))
	}
	return row.New(6).Add(
		h("Etapa", 6, align.Left),
		h("Documentos", 2, align.Right),
		h("Importe", 4, align.Right),
	)
}

// summaryRows una fila por etapa en orden de tablero.
func (g *MarotoPDFGenerator) summaryRows(stats budget.Stats) []core.Row {
	rows := make([]core.Row, 0, len(pipeline.Stages()))
	for _, d := range pipeline.Descriptors() {
		t := stats.For(d.Stage)
		rows = append(rows, row.New(6).Add(
			col.New(6).Add(text.New(d.Label, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(strconv.Itoa(t.Count), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(4).Add(text.New(g.money.EUR(t.Amount), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return rows
}

func (g *MarotoPDFGenerator) kpiRow(stats budget.Stats) core.Row {
	label := func(s string, c *props.Color) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Color: c})
	}
	value := func(s string, c *props.Color) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Color: c})
	}
	return row.New(12).Add(
		col.New(4),
		col.New(4).Add(
			label(fmt.Sprintf("Vencido (%d):", stats.Overdue.Count), colorDanger),
			label("Tasa de conversión:", colorPrimary),
		),
		col.New(4).Add(
			value(g.money.EUR(stats.Overdue.Amount), colorDanger),
			value(g.money.Percent(stats.ConversionRate), colorPrimary),
		),
	)
}

func itemsHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Top: 1, Left: 1, Right: 1,
		}))
	}
	return row.New(6).Add(
		h("Número", 2, align.Left),
		h("Cliente", 4, align.Left),
		h("Tipo", 1, align.Left),
		h("Etapa", 2, align.Left),
		h("Vence", 1, align.Center),
		h("Total", 2, align.Right),
	)
}

// itemRows una fila por documento; los vencidos en rojo.
func (g *MarotoPDFGenerator) itemRows(items []entity.PipelineItem) []core.Row {
	rows := make([]core.Row, 0, len(items))
	for _, it := range items {
		var c *props.Color
		if it.IsOverdue {
			c = colorDanger
		}
		due := "-"
		if it.DueDate != nil {
			due = it.DueDate.Format("02/01/06")
		}
		cell := func(s string, size int, a align.Type) core.Col {
			return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1, Color: c}))
		}
		rows = append(rows, row.New(6).Add(
			cell(it.Number, 2, align.Left),
			cell(it.Company, 4, align.Left),
			cell(kindLabel(it.Kind), 1, align.Left),
			cell(it.Stage.Label(), 2, align.Left),
			cell(due, 1, align.Center),
			cell(g.money.EUR(it.Total), 2, align.Right),
		))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func kindLabel(kind string) string {
	switch kind {
	case entity.KindQuote:
		return "Presup."
	case entity.KindInvoice:
		return "Factura"
	}
	return kind
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
