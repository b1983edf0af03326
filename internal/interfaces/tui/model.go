// Package tui tablero Kanban del pipeline en terminal (bubbletea).
//
// El modelo no toca la red dentro de Update: la carga de documentos y las
// transiciones se lanzan como tea.Cmd y vuelven como mensajes. El estado del
// tablero (store, arrastre, diálogo, avisos) vive en budget.Board.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lapublica/pipeline-api/internal/application/budget"
	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/pkg/money"
)

const defaultTimeout = 15 * time.Second

type itemsLoadedMsg struct {
	items []entity.PipelineItem
	err   error
}

type transitionDoneMsg struct {
	req budget.TransitionRequest
	err error
}

// Option personaliza el modelo (tests y runtimes alternativos).
type Option func(*Model)

// WithMoney cambia el formateador de importes.
func WithMoney(f *money.Formatter) Option {
	return func(m *Model) {
		if f != nil {
			m.money = f
		}
	}
}

// WithTimeout límite de cada llamada al backend.
func WithTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// Model modelo bubbletea del tablero.
type Model struct {
	board   *budget.Board
	money   *money.Formatter
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	timeout time.Duration

	col     int // columna con el foco (índice de pipeline.Stages)
	row     int // tarjeta con el foco dentro de la columna
	loading bool
	loaded  bool
	loadErr error
	width   int
}

// New construye el modelo sobre un tablero. Init lanza la primera carga.
func New(board *budget.Board, opts ...Option) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := &Model{
		board:   board,
		money:   money.Default(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		timeout: defaultTimeout,
		loading: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run abre el tablero a pantalla completa hasta que el usuario sale.
func Run(ctx context.Context, m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case itemsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			if !m.loaded {
				m.loadErr = msg.err
			}
			m.board.Warn(msg.err)
			return m, nil
		}
		m.board.Store().Replace(msg.items)
		m.loaded = true
		m.loadErr = nil
		m.clampRow()
		return m, nil

	case transitionDoneMsg:
		// Con error el diálogo queda abierto con el mensaje del backend.
		m.board.CompleteTransition(msg.req, msg.err)
		if msg.err != nil {
			return m, nil
		}
		m.board.DismissDialog()
		m.focusItem(msg.req.ItemID)
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.load())

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.board.Dialog() != nil {
			return m.updateDialog(msg)
		}
		if m.board.Drag().Dragging() {
			return m.updateDrag(msg)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

func (m *Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.board.ClearNotice()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		m.moveColumn(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveColumn(1)
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		m.row++
		m.clampRow()
	case key.Matches(msg, m.keys.Grab):
		if item, ok := m.selected(); ok {
			if err := m.board.StartDrag(item.ID); err != nil {
				m.board.Warn(err)
			}
		}
	case key.Matches(msg, m.keys.Refresh):
		if !m.loading {
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.load())
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) updateDrag(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	drag := m.board.Drag()
	switch {
	case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Right):
		ghost, _ := drag.Ghost()
		next := int(ghost) + 1
		if key.Matches(msg, m.keys.Left) {
			next = int(ghost) - 1
		}
		if next >= 0 && next < len(pipeline.Stages()) {
			drag.Hover(pipeline.Stage(next))
		}
	case key.Matches(msg, m.keys.Drop), key.Matches(msg, m.keys.Grab):
		ghost, _ := drag.Ghost()
		res := m.board.Drop(ghost)
		if res.Candidate.Item.ID != "" {
			m.focusItem(res.Candidate.Item.ID)
		}
	case key.Matches(msg, m.keys.Cancel):
		id := drag.ActiveID()
		drag.Cancel()
		m.focusItem(id)
	}
	return m, nil
}

func (m *Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		req, err := m.board.BeginTransition()
		if err != nil {
			// ErrDialogBusy: ya hay una petición en curso. ErrIllegalTransition:
			// el diálogo solo se puede cancelar.
			return m, nil
		}
		return m, tea.Batch(m.spinner.Tick, m.transition(req))
	case key.Matches(msg, m.keys.Cancel):
		_ = m.board.CancelDialog()
	}
	return m, nil
}

func (m *Model) load() tea.Cmd {
	loader := m.board.Loader()
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		items, err := loader.LoadItems(ctx)
		return itemsLoadedMsg{items: items, err: err}
	}
}

func (m *Model) transition(req budget.TransitionRequest) tea.Cmd {
	exec := m.board.Executor()
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := exec.Transition(ctx, req.ItemID, req.From, req.To)
		return transitionDoneMsg{req: req, err: err}
	}
}

func (m *Model) busy() bool {
	if m.loading {
		return true
	}
	d := m.board.Dialog()
	return d != nil && d.State() == budget.DialogSubmitting
}

func (m *Model) moveColumn(delta int) {
	next := m.col + delta
	if next < 0 || next >= len(pipeline.Stages()) {
		return
	}
	m.col = next
	m.clampRow()
}

func (m *Model) clampRow() {
	n := len(m.board.Store().ItemsInStage(pipeline.Stage(m.col)))
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

// focusItem lleva el cursor a la tarjeta del documento, esté donde esté.
func (m *Model) focusItem(id string) {
	item, ok := m.board.Store().Find(id)
	if !ok {
		m.clampRow()
		return
	}
	m.col = int(item.Stage)
	for i, it := range m.board.Store().ItemsInStage(item.Stage) {
		if it.ID == id {
			m.row = i
			return
		}
	}
}

func (m *Model) selected() (entity.PipelineItem, bool) {
	items := m.board.Store().ItemsInStage(pipeline.Stage(m.col))
	if m.row < 0 || m.row >= len(items) {
		return entity.PipelineItem{}, false
	}
	return items[m.row], true
}

// ──────────────────────────────────────────────────────────────────────────────
// Vista
// ──────────────────────────────────────────────────────────────────────────────

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Pipeline de presupuestos y facturas"))
	b.WriteString("\n\n")

	if !m.loaded {
		switch {
		case m.loadErr != nil:
			b.WriteString(errorStyle.Render("No se pudo cargar el pipeline: " + m.loadErr.Error()))
			b.WriteString("\n" + mutedStyle.Render("r para reintentar, q para salir") + "\n")
		default:
			b.WriteString(m.spinner.View() + " Cargando documentos...\n")
		}
		return b.String()
	}

	columns := make([]string, 0, len(pipeline.Stages()))
	for _, stage := range pipeline.Stages() {
		columns = append(columns, m.renderColumn(stage))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, columns...))
	b.WriteString("\n")
	b.WriteString(m.renderSummary())
	b.WriteString("\n")

	if d := m.board.Dialog(); d != nil {
		b.WriteString("\n" + m.renderDialog(d.View()) + "\n")
	}
	if n, ok := m.board.Notice(); ok {
		b.WriteString("\n" + toastStyle.Render(n.Message) + "\n")
	}
	if m.loading {
		b.WriteString(m.spinner.View() + " actualizando\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderColumn(stage pipeline.Stage) string {
	desc := pipeline.Describe(stage)
	store := m.board.Store()
	items := store.ItemsInStage(stage)
	drag := m.board.Drag()
	ghost, dragging := drag.Ghost()

	var b strings.Builder
	b.WriteString(stageHeader(fmt.Sprintf("%s (%d)", desc.Label, len(items)), desc.Color))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.money.EUR(store.TotalAmount(stage))))
	b.WriteString("\n\n")

	for i, it := range items {
		style := cardStyle
		switch {
		case dragging && it.ID == drag.ActiveID():
			style = draggedCardStyle
		case !dragging && int(stage) == m.col && i == m.row:
			style = selectedCardStyle
		}
		b.WriteString(style.Render(m.renderCard(it)))
		b.WriteString("\n")
	}
	if dragging && ghost == stage {
		if active, ok := store.Find(drag.ActiveID()); ok && active.Stage != stage {
			b.WriteString(draggedCardStyle.Render("» " + active.Number))
			b.WriteString("\n")
		}
	}

	style := columnStyle
	switch {
	case dragging && ghost == stage:
		style = ghostColumnStyle
	case !dragging && int(stage) == m.col:
		style = focusedColumnStyle
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) renderCard(it entity.PipelineItem) string {
	lines := []string{
		it.Number,
		it.Company,
		m.money.EUR(it.Total),
	}
	if p := it.EffectivePaidPercentage(); p != nil && it.Kind == entity.KindInvoice {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("pagado %d%%", *p)))
	}
	if it.DueDate != nil {
		due := "vence " + it.DueDate.Format("02/01/2006")
		if it.IsOverdue {
			due = overdueStyle.Render(due + " · vencida")
		}
		lines = append(lines, due)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderSummary() string {
	stats := m.board.Store().Stats()
	return mutedStyle.Render(fmt.Sprintf(
		"Conversión %s · Vencidas %d (%s)",
		m.money.Percent(stats.ConversionRate),
		stats.Overdue.Count,
		m.money.EUR(stats.Overdue.Amount),
	))
}

func (m *Model) renderDialog(v budget.DialogView) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(v.Title))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s · %s · %s\n", v.Item.Number, v.Item.Company, m.money.EUR(v.Item.Total)))
	b.WriteString(v.Description)
	b.WriteString("\n\n")

	switch {
	case v.Loading:
		b.WriteString(m.spinner.View() + " aplicando...")
	case !v.CanConfirm:
		b.WriteString(mutedStyle.Render("esc/n cerrar"))
	default:
		if v.Err != nil {
			b.WriteString(errorStyle.Render(errorText(v.Err)))
			b.WriteString("\n")
		}
		b.WriteString(mutedStyle.Render("enter/y confirmar · esc/n cancelar"))
	}
	return dialogStyle.Render(b.String())
}

// errorText mensaje a mostrar. Los rechazos del backend se muestran tal cual.
func errorText(err error) string {
	var te *domain.TransitionError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return err.Error()
}
