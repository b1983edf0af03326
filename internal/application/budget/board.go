package budget

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// Notice aviso no bloqueante (toast) del tablero.
type Notice struct {
	Message string
	Err     error
	At      time.Time
}

// Board coordina el tablero Kanban: store, arrastre, diálogo activo y avisos.
// Cada tablero es dueño de su propio estado; no hay singletons.
type Board struct {
	store  *Store
	drag   *DragController
	loader ItemLoader
	exec   Executor
	dialog *Dialog
	notice *Notice
	now    func() time.Time
}

// NewBoard construye un tablero vacío; llamar a Refresh para cargarlo.
func NewBoard(loader ItemLoader, exec Executor) *Board {
	store := NewStore(nil)
	return &Board{
		store:  store,
		drag:   NewDragController(store),
		loader: loader,
		exec:   exec,
		now:    time.Now,
	}
}

// Store copia de trabajo del tablero.
func (b *Board) Store() *Store { return b.store }

// Drag controlador de arrastre del tablero.
func (b *Board) Drag() *DragController { return b.drag }

// Executor ejecutor de transiciones configurado.
func (b *Board) Executor() Executor { return b.exec }

// Loader fuente de la lista autoritativa.
func (b *Board) Loader() ItemLoader { return b.loader }

// Dialog diálogo activo (nil si no hay).
func (b *Board) Dialog() *Dialog { return b.dialog }

// ClearNotice descarta el aviso pendiente.
func (b *Board) ClearNotice() { b.notice = nil }

// Notice devuelve el aviso pendiente, si hay.
func (b *Board) Notice() (Notice, bool) {
	if b.notice == nil {
		return Notice{}, false
	}
	return *b.notice, true
}

// Refresh recarga la lista autoritativa y la reasigna completa.
func (b *Board) Refresh(ctx context.Context) error {
	items, err := b.loader.LoadItems(ctx)
	if err != nil {
		return err
	}
	b.store.Replace(items)
	return nil
}

// StartDrag inicia el arrastre de un documento.
func (b *Board) StartDrag(itemID string) error {
	if b.dialog != nil && !b.dialog.Closed() {
		return domain.ErrDialogBusy
	}
	return b.drag.Start(itemID)
}

// Drop suelta el documento en arrastre sobre target. Una transición no
// permitida deja un aviso; una permitida abre el diálogo de confirmación.
func (b *Board) Drop(target pipeline.Stage) DropResult {
	res := b.drag.Drop(target)
	switch res.Outcome {
	case DropRejected:
		b.setNotice(res.Err)
		log.Debug().
			Str("item_id", res.Candidate.Item.ID).
			Stringer("from", res.Candidate.From).
			Stringer("to", res.Candidate.To).
			Msg("transición rechazada en el tablero")
	case DropNeedsConfirmation:
		b.dialog = NewDialog(res.Candidate.Item, res.Candidate.From, res.Candidate.To)
	}
	return res
}

// OpenDialog abre el diálogo para un documento y un destino sin pasar por el
// arrastre (por ejemplo desde la línea de comandos). El diálogo valida el par.
func (b *Board) OpenDialog(itemID string, to pipeline.Stage) (*Dialog, error) {
	item, ok := b.store.Find(itemID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	b.dialog = NewDialog(item, item.Stage, to)
	return b.dialog, nil
}

// BeginTransition inicia la confirmación del diálogo activo (uso asíncrono).
func (b *Board) BeginTransition() (TransitionRequest, error) {
	if b.dialog == nil {
		return TransitionRequest{}, errors.New("no hay diálogo abierto")
	}
	return b.dialog.Begin()
}

// CompleteTransition registra el resultado del Executor. Con éxito aplica el
// cambio de etapa en la copia local; quien llama debe pedir después un Refresh.
func (b *Board) CompleteTransition(req TransitionRequest, err error) {
	if b.dialog == nil {
		return
	}
	b.dialog.Finish(err)
	if err != nil {
		return
	}
	b.store.Patch(req.ItemID, req.To)
}

// ConfirmTransition confirma el diálogo activo de forma síncrona y, si el
// backend acepta, recarga la lista. Si la recarga falla se aplica el cambio
// sobre la copia local y se deja un aviso.
func (b *Board) ConfirmTransition(ctx context.Context) error {
	if b.dialog == nil {
		return errors.New("no hay diálogo abierto")
	}
	req := b.dialog.Request()
	if err := b.dialog.Confirm(ctx, b.exec); err != nil {
		return err
	}
	if err := b.Refresh(ctx); err != nil {
		b.store.Patch(req.ItemID, req.To)
		b.setNotice(err)
	}
	return nil
}

// CancelDialog cierra el diálogo activo sin mutación.
func (b *Board) CancelDialog() error {
	if b.dialog == nil {
		return nil
	}
	if err := b.dialog.Cancel(); err != nil {
		return err
	}
	b.dialog = nil
	return nil
}

// DismissDialog descarta un diálogo ya terminado.
func (b *Board) DismissDialog() {
	if b.dialog != nil && b.dialog.Closed() {
		b.dialog = nil
	}
}

// Warn deja un aviso no bloqueante con el error indicado.
func (b *Board) Warn(err error) { b.setNotice(err) }

func (b *Board) setNotice(err error) {
	if err == nil {
		return
	}
	b.notice = &Notice{Message: err.Error(), Err: err, At: b.now()}
}
