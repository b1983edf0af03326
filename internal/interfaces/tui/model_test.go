package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/lapublica/pipeline-api/internal/application/budget"
	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/pkg/money"
)

// ──────────────────────────────────────────────────────────────────────────────
// Dobles de prueba
// ──────────────────────────────────────────────────────────────────────────────

type stubBackend struct {
	mu       sync.Mutex
	items    []entity.PipelineItem
	calls    int
	failure  error
	loadFail error
}

func (s *stubBackend) LoadItems(_ context.Context) ([]entity.PipelineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadFail != nil {
		return nil, s.loadFail
	}
	return append([]entity.PipelineItem(nil), s.items...), nil
}

func (s *stubBackend) Transition(_ context.Context, itemID string, _, to pipeline.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failure != nil {
		return s.failure
	}
	for i := range s.items {
		if s.items[i].ID == itemID {
			s.items[i].Stage = to
		}
	}
	return nil
}

func quote(id string, stage pipeline.Stage, total int64) entity.PipelineItem {
	return entity.PipelineItem{
		ID:        id,
		Kind:      entity.KindQuote,
		Number:    "PRE-" + id,
		Company:   "Consell Comarcal",
		Total:     decimal.NewFromInt(total),
		IssueDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Stage:     stage,
	}
}

func newTestModel(t *testing.T, backend *stubBackend) *Model {
	t.Helper()
	board := budget.NewBoard(backend, backend)
	m := New(board, WithMoney(money.NewFormatter(language.English)), WithTimeout(time.Second))
	return runCommands(t, m, m.Init())
}

// runCommands ejecuta los comandos en cadena y entrega sus mensajes a Update.
// Los ticks del spinner se descartan para no esperar temporizadores.
func runCommands(t *testing.T, m *Model, cmd tea.Cmd) *Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			model, c := m.Update(msg)
			var ok bool
			m, ok = model.(*Model)
			require.True(t, ok, "unexpected model type: %T", model)
			queue = append(queue, c)
		}
	}
	return m
}

func press(t *testing.T, m *Model, keys ...string) *Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		model, cmd := m.Update(msg)
		m = runCommands(t, model.(*Model), cmd)
	}
	return m
}

func stageOf(t *testing.T, m *Model, id string) pipeline.Stage {
	t.Helper()
	it, ok := m.board.Store().Find(id)
	require.True(t, ok, "documento %s no encontrado", id)
	return it.Stage
}

// ──────────────────────────────────────────────────────────────────────────────
// Carga inicial y navegación
// ──────────────────────────────────────────────────────────────────────────────

func TestInit_CargaDocumentos(t *testing.T) {
	backend := &stubBackend{items: []entity.PipelineItem{quote("q1", pipeline.StageDraft, 1000)}}
	m := newTestModel(t, backend)

	assert.False(t, m.loading)
	assert.Equal(t, 1, m.board.Store().Len())
	view := m.View()
	assert.Contains(t, view, "PRE-q1")
	assert.Contains(t, view, "1,000.00 €")
	assert.Contains(t, view, "Borrador (1)")
}

func TestInit_ErrorDeCarga(t *testing.T) {
	backend := &stubBackend{loadFail: domain.NewTransitionError(domain.ErrNetworkFailure, "")}
	m := newTestModel(t, backend)

	assert.Contains(t, m.View(), "No se pudo cargar el pipeline")

	backend.loadFail = nil
	backend.items = []entity.PipelineItem{quote("q1", pipeline.StageDraft, 10)}
	m = press(t, m, "r")
	assert.Contains(t, m.View(), "PRE-q1")
}

func TestNavegacion_ColumnasLimitadas(t *testing.T) {
	m := newTestModel(t, &stubBackend{})
	m = press(t, m, "left")
	assert.Equal(t, 0, m.col)
	m = press(t, m, "right", "right", "right", "right", "right", "right", "right")
	assert.Equal(t, len(pipeline.Stages())-1, m.col)
}

// ──────────────────────────────────────────────────────────────────────────────
// Arrastre con teclado
// ──────────────────────────────────────────────────────────────────────────────

func TestDrop_NoPermitidoDejaAviso(t *testing.T) {
	backend := &stubBackend{items: []entity.PipelineItem{quote("q1", pipeline.StageDraft, 1000)}}
	m := newTestModel(t, backend)

	m = press(t, m, "space", "right", "right", "enter")

	assert.Nil(t, m.board.Dialog(), "no debe abrirse el diálogo")
	assert.Equal(t, pipeline.StageDraft, stageOf(t, m, "q1"))
	n, ok := m.board.Notice()
	require.True(t, ok)
	assert.ErrorIs(t, n.Err, domain.ErrIllegalTransition)
	assert.Contains(t, m.View(), n.Message)
	assert.Equal(t, 0, backend.calls)
	assert.Equal(t, 0, m.col, "el cursor vuelve a la columna del documento")
}

func TestDrop_EscCancelaElArrastre(t *testing.T) {
	backend := &stubBackend{items: []entity.PipelineItem{quote("q1", pipeline.StageDraft, 1000)}}
	m := newTestModel(t, backend)

	m = press(t, m, "space", "right", "esc")

	assert.False(t, m.board.Drag().Dragging())
	assert.Nil(t, m.board.Dialog())
	assert.Equal(t, 0, m.col)
}

func TestDrop_ConfirmarAplicaYRecarga(t *testing.T) {
	backend := &stubBackend{items: []entity.PipelineItem{quote("q1", pipeline.StageDraft, 1000)}}
	m := newTestModel(t, backend)

	m = press(t, m, "space", "right", "enter")
	require.NotNil(t, m.board.Dialog())
	assert.Contains(t, m.View(), "Borrador → Enviado")
	assert.Equal(t, pipeline.StageDraft, stageOf(t, m, "q1"), "sin confirmar no hay cambio")

	m = press(t, m, "y")

	assert.Nil(t, m.board.Dialog())
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, pipeline.StageSent, stageOf(t, m, "q1"))
	assert.True(t, m.board.Store().TotalAmount(pipeline.StageSent).Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, int(pipeline.StageSent), m.col, "el cursor sigue al documento")
}

func TestDialogo_CancelarNoLlamaAlBackend(t *testing.T) {
	backend := &stubBackend{items: []entity.PipelineItem{quote("q1", pipeline.StageSent, 500)}}
	m := newTestModel(t, backend)
	m = press(t, m, "right")

	m = press(t, m, "space", "right", "enter", "n")

	assert.Nil(t, m.board.Dialog())
	assert.Equal(t, 0, backend.calls)
	assert.Equal(t, pipeline.StageSent, stageOf(t, m, "q1"))
}

func TestDialogo_ErrorDelBackendQuedaVisible(t *testing.T) {
	backend := &stubBackend{
		items:   []entity.PipelineItem{quote("q1", pipeline.StageApproved, 2000)},
		failure: domain.NewTransitionError(domain.ErrStaleState, "Quote already invoiced"),
	}
	m := newTestModel(t, backend)
	m = press(t, m, "right", "right")

	m = press(t, m, "space", "right", "enter", "enter")

	d := m.board.Dialog()
	require.NotNil(t, d)
	assert.Equal(t, budget.DialogFailed, d.State())
	assert.Equal(t, pipeline.StageApproved, stageOf(t, m, "q1"))
	assert.Contains(t, m.View(), "Quote already invoiced")
	assert.Equal(t, 1, backend.calls, "sin reintento automático")

	backend.failure = nil
	m = press(t, m, "enter")
	assert.Equal(t, 2, backend.calls)
	assert.Equal(t, pipeline.StageInvoiced, stageOf(t, m, "q1"))
}

func TestDialogo_NoSePuedeConfirmarEnCurso(t *testing.T) {
	backend := &stubBackend{items: []entity.PipelineItem{quote("q1", pipeline.StageDraft, 1000)}}
	m := newTestModel(t, backend)
	m = press(t, m, "space", "right", "enter")

	// Primer enter sin ejecutar el comando: la petición queda en curso.
	_, first := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, first)
	_, second := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, second, "un segundo enter no lanza otra transición")
	assert.Equal(t, budget.DialogSubmitting, m.board.Dialog().State())

	m = runCommands(t, m, first)
	assert.Equal(t, 1, backend.calls)
}

func TestRecargaFallidaTrasTransicion(t *testing.T) {
	backend := &stubBackend{items: []entity.PipelineItem{quote("q1", pipeline.StageDraft, 1000)}}
	m := newTestModel(t, backend)
	m = press(t, m, "space", "right", "enter")

	backend.loadFail = errors.New("offline")
	m = press(t, m, "y")

	assert.Equal(t, pipeline.StageSent, stageOf(t, m, "q1"), "se aplica sobre la copia local")
	n, ok := m.board.Notice()
	require.True(t, ok)
	assert.Equal(t, "offline", n.Message)
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, &stubBackend{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
