package budget

import (
	"fmt"

	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// DropOutcome resultado de soltar un documento sobre una columna.
type DropOutcome int

const (
	DropNoop              DropOutcome = iota // misma columna o fuera de una columna
	DropRejected                             // transición no permitida; el documento vuelve a su columna
	DropNeedsConfirmation                    // transición permitida; hay que abrir el diálogo
)

func (o DropOutcome) String() string {
	switch o {
	case DropNoop:
		return "noop"
	case DropRejected:
		return "rejected"
	case DropNeedsConfirmation:
		return "needs_confirmation"
	default:
		return fmt.Sprintf("DropOutcome(%d)", int(o))
	}
}

// Candidate transición propuesta por un gesto de arrastre.
type Candidate struct {
	Item entity.PipelineItem
	From pipeline.Stage
	To   pipeline.Stage
}

// DropResult resultado completo de Drop.
type DropResult struct {
	Outcome   DropOutcome
	Candidate Candidate
	Err       error
}

// DragController traduce un gesto de arrastre (puntero o teclado) en una
// transición candidata. Solo guarda estado de interfaz: qué documento está
// activo y sobre qué columna está su "fantasma". No conoce al Executor.
type DragController struct {
	store    *Store
	activeID string
	ghost    pipeline.Stage
	dragging bool
}

// NewDragController construye el controlador sobre el store del tablero.
func NewDragController(store *Store) *DragController {
	return &DragController{store: store}
}

// Start marca el documento que se está moviendo. El fantasma empieza en su columna.
func (d *DragController) Start(itemID string) error {
	item, ok := d.store.Find(itemID)
	if !ok {
		return domain.ErrNotFound
	}
	d.activeID = item.ID
	d.ghost = item.Stage
	d.dragging = true
	return nil
}

// Dragging indica si hay un arrastre en curso.
func (d *DragController) Dragging() bool { return d.dragging }

// ActiveID id del documento en arrastre ("" si no hay).
func (d *DragController) ActiveID() string {
	if !d.dragging {
		return ""
	}
	return d.activeID
}

// Hover mueve el fantasma sobre la columna indicada.
func (d *DragController) Hover(stage pipeline.Stage) {
	if d.dragging && stage.Valid() {
		d.ghost = stage
	}
}

// Ghost devuelve la columna sobre la que está el fantasma.
func (d *DragController) Ghost() (pipeline.Stage, bool) {
	return d.ghost, d.dragging
}

// Cancel termina el arrastre sin efectos.
func (d *DragController) Cancel() {
	d.activeID = ""
	d.dragging = false
}

// Drop termina el arrastre sobre la columna target.
//   - from == to (o target fuera de rango): DropNoop.
//   - to no permitido desde from: DropRejected con domain.ErrIllegalTransition.
//   - permitido: DropNeedsConfirmation; nunca se aplica sin diálogo.
func (d *DragController) Drop(target pipeline.Stage) DropResult {
	if !d.dragging {
		return DropResult{Outcome: DropNoop}
	}
	id := d.activeID
	d.Cancel()

	item, ok := d.store.Find(id)
	if !ok {
		return DropResult{Outcome: DropRejected, Err: domain.ErrNotFound}
	}
	candidate := Candidate{Item: item, From: item.Stage, To: target}
	if !target.Valid() || target == item.Stage {
		return DropResult{Outcome: DropNoop, Candidate: candidate}
	}
	if !pipeline.CanTransition(item.Stage, target) {
		return DropResult{Outcome: DropRejected, Candidate: candidate, Err: domain.ErrIllegalTransition}
	}
	return DropResult{Outcome: DropNeedsConfirmation, Candidate: candidate}
}
