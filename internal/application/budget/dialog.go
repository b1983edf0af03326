package budget

import (
	"context"
	"fmt"
	"sync"

	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// NotPermittedMessage texto del diálogo cuando el par no es una transición registrada.
const NotPermittedMessage = "Esta transición no está permitida."

// DialogState estado del diálogo de confirmación.
type DialogState int

const (
	DialogOpen       DialogState = iota // esperando confirmación
	DialogSubmitting                    // transición en curso; confirmar está deshabilitado
	DialogFailed                        // el executor falló; se puede reintentar o cancelar
	DialogDone                          // transición aplicada; diálogo cerrado
	DialogCancelled                     // cerrado sin mutación
)

func (s DialogState) String() string {
	switch s {
	case DialogOpen:
		return "open"
	case DialogSubmitting:
		return "submitting"
	case DialogFailed:
		return "failed"
	case DialogDone:
		return "done"
	case DialogCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("DialogState(%d)", int(s))
	}
}

// TransitionRequest petición que el diálogo entrega al Executor.
type TransitionRequest struct {
	ItemID string
	From   pipeline.Stage
	To     pipeline.Stage
}

// DialogView lo que la interfaz necesita para pintar el diálogo.
type DialogView struct {
	Title       string // "Borrador → Enviado"
	Description string
	Item        entity.PipelineItem
	CanConfirm  bool
	Loading     bool
	Err         error
	State       DialogState
}

// Dialog diálogo de confirmación de una transición.
//
// Vuelve a comprobar el par contra el registro aunque quien lo abra ya lo haya
// validado: se puede abrir desde más de un sitio.
type Dialog struct {
	mu          sync.Mutex
	item        entity.PipelineItem
	from        pipeline.Stage
	to          pipeline.Stage
	description string
	permitted   bool
	state       DialogState
	err         error
}

// NewDialog abre el diálogo para el documento y el par (from, to).
func NewDialog(item entity.PipelineItem, from, to pipeline.Stage) *Dialog {
	desc, ok := pipeline.DescribeTransition(from, to)
	if !ok {
		desc = NotPermittedMessage
	}
	return &Dialog{
		item:        item,
		from:        from,
		to:          to,
		description: desc,
		permitted:   ok,
		state:       DialogOpen,
	}
}

// Request petición asociada al diálogo.
func (d *Dialog) Request() TransitionRequest {
	return TransitionRequest{ItemID: d.item.ID, From: d.from, To: d.to}
}

// State estado actual.
func (d *Dialog) State() DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Closed indica si el diálogo terminó (aplicado o cancelado).
func (d *Dialog) Closed() bool {
	s := d.State()
	return s == DialogDone || s == DialogCancelled
}

// View devuelve la representación actual del diálogo.
func (d *Dialog) View() DialogView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DialogView{
		Title:       d.from.Label() + " → " + d.to.Label(),
		Description: d.description,
		Item:        d.item,
		CanConfirm:  d.permitted && (d.state == DialogOpen || d.state == DialogFailed),
		Loading:     d.state == DialogSubmitting,
		Err:         d.err,
		State:       d.state,
	}
}

// Begin pasa el diálogo a Submitting y devuelve la petición a ejecutar.
// Mientras hay una petición en curso devuelve domain.ErrDialogBusy, así un
// segundo clic no produce una segunda llamada al Executor.
func (d *Dialog) Begin() (TransitionRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.permitted {
		return TransitionRequest{}, domain.ErrIllegalTransition
	}
	switch d.state {
	case DialogOpen, DialogFailed:
	case DialogSubmitting:
		return TransitionRequest{}, domain.ErrDialogBusy
	default:
		return TransitionRequest{}, fmt.Errorf("diálogo cerrado (%s)", d.state)
	}
	d.state = DialogSubmitting
	d.err = nil
	return TransitionRequest{ItemID: d.item.ID, From: d.from, To: d.to}, nil
}

// Finish registra el resultado del Executor. Con error el diálogo queda
// abierto mostrando el mensaje; sin error se cierra.
func (d *Dialog) Finish(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DialogSubmitting {
		return
	}
	if err != nil {
		d.state = DialogFailed
		d.err = err
		return
	}
	d.state = DialogDone
}

// Confirm ejecuta Begin, el Executor y Finish de forma síncrona.
func (d *Dialog) Confirm(ctx context.Context, exec Executor) error {
	req, err := d.Begin()
	if err != nil {
		return err
	}
	err = exec.Transition(ctx, req.ItemID, req.From, req.To)
	d.Finish(err)
	return err
}

// Cancel cierra el diálogo sin mutación. No se puede cancelar con la petición en curso.
func (d *Dialog) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case DialogSubmitting:
		return domain.ErrDialogBusy
	case DialogDone:
		return nil
	}
	d.state = DialogCancelled
	return nil
}
