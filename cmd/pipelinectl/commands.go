package main

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lapublica/pipeline-api/internal/application/budget"
	"github.com/lapublica/pipeline-api/internal/application/dto"
	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/interfaces/tui"
)

func newBoardCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Abre el tablero Kanban interactivo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := c.api()
			board := budget.NewBoard(client, client)
			return tui.Run(cmd.Context(), tui.New(board, tui.WithMoney(c.money), tui.WithTimeout(c.cfg.Timeout)))
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lista los documentos del alcance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.api().List(cmd.Context())
			if err != nil {
				return err
			}
			if done, err := render(c.out, c.output, resp.Items); done {
				return err
			}
			t := newTable("ID", "TIPO", "NÚMERO", "CLIENTE", "TOTAL", "ETAPA", "VENCE", "")
			for _, it := range resp.Items {
				flag := ""
				if it.IsOverdue {
					flag = "vencida"
				}
				t.Row(it.ID, it.Kind, it.Number, it.Company, c.money.EUR(it.Total), it.Stage.Label(), it.DueDate, flag)
			}
			return printTable(c.out, t)
		},
	}
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Muestra recuento e importe por etapa, vencidos y conversión",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.api().List(cmd.Context())
			if err != nil {
				return err
			}
			if done, err := render(c.out, c.output, resp.Stats); done {
				return err
			}
			t := newTable("ETAPA", "DOCUMENTOS", "IMPORTE")
			for _, row := range statsRows(resp.Stats) {
				t.Row(row.label, strconv.Itoa(row.totals.Count), c.money.EUR(row.totals.Amount))
			}
			if err := printTable(c.out, t); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "Conversión: %s\n", c.money.Percent(resp.Stats.ConversionRate))
			return err
		},
	}
}

type statsRow struct {
	label  string
	totals dto.StageTotalsDTO
}

func statsRows(s dto.PipelineStatsDTO) []statsRow {
	return []statsRow{
		{pipeline.StageDraft.Label(), s.Draft},
		{pipeline.StageSent.Label(), s.Sent},
		{pipeline.StageApproved.Label(), s.Approved},
		{pipeline.StageInvoiced.Label(), s.Invoiced},
		{pipeline.StagePaid.Label(), s.Paid},
		{pipeline.StageRejected.Label(), s.Rejected},
		{"Vencido", s.Overdue},
	}
}

func newMoveCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "move <id> <etapa>",
		Short: "Mueve un documento a otra etapa tras confirmarlo",
		Long: `Abre el mismo diálogo de confirmación que el tablero: muestra el par
origen → destino y su descripción y pide confirmación antes de llamar a la API.
Una transición no permitida se rechaza sin llamar a la API.`,
		Example: `  pipelinectl move 3f6c… sent
  pipelinectl move 3f6c… approved --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := pipeline.ParseStage(args[1])
			if err != nil {
				return err
			}
			client := c.api()
			board := budget.NewBoard(client, client)
			if err := board.Refresh(cmd.Context()); err != nil {
				return err
			}
			dialog, err := board.OpenDialog(args[0], to)
			if err != nil {
				return fmt.Errorf("documento %s: %w", args[0], err)
			}
			view := dialog.View()
			fmt.Fprintf(c.out, "%s  %s · %s · %s\n%s\n",
				view.Title, view.Item.Number, view.Item.Company, c.money.EUR(view.Item.Total), view.Description)
			if !view.CanConfirm {
				_ = board.CancelDialog()
				return domain.ErrIllegalTransition
			}
			if !yes && !confirm(c, "¿Confirmar? [y/N] ") {
				_ = board.CancelDialog()
				_, err := fmt.Fprintln(c.out, "cancelado")
				return err
			}

			if err := board.ConfirmTransition(cmd.Context()); err != nil {
				c.log.Warn().Err(err).Str("item_id", args[0]).Msg("transición rechazada")
				return err
			}
			if n, ok := board.Notice(); ok {
				c.log.Warn().Err(n.Err).Msg("no se pudo recargar tras la transición")
			}
			moved, _ := board.Store().Find(args[0])
			_, err = fmt.Fprintf(c.out, "%s ahora está en %s\n", moved.Number, moved.Stage.Label())
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "no pedir confirmación")
	return cmd
}

func confirm(c *cli, prompt string) bool {
	fmt.Fprint(c.out, prompt)
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "s", "si", "sí":
		return true
	}
	return false
}

func newHistoryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Historial de transiciones de un documento",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.api().History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if done, err := render(c.out, c.output, list); done {
				return err
			}
			if len(list) == 0 {
				_, err := fmt.Fprintln(c.out, "sin transiciones")
				return err
			}
			t := newTable("FECHA", "DE", "A", "USUARIO")
			for _, h := range list {
				t.Row(h.CreatedAt.Local().Format("2006-01-02 15:04"), h.From.Label(), h.To.Label(), h.UserID)
			}
			return printTable(c.out, t)
		},
	}
}

func newStagesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "Etapas y transiciones permitidas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.api().Stages(cmd.Context())
			if err != nil {
				if !errors.Is(err, domain.ErrNetworkFailure) {
					return err
				}
				// Sin API se muestra el registro local, que es el mismo.
				c.log.Warn().Err(err).Msg("API no disponible, se usa el registro local")
				list = localStages()
			}
			if done, err := render(c.out, c.output, list); done {
				return err
			}
			t := newTable("ETAPA", "DESCRIPCIÓN", "PUEDE PASAR A")
			for _, s := range list {
				t.Row(s.Label, s.Description, strings.Join(s.AllowedTransitions, ", "))
			}
			return printTable(c.out, t)
		},
	}
}

func localStages() []dto.StageDescriptorDTO {
	out := make([]dto.StageDescriptorDTO, 0)
	for _, d := range pipeline.Descriptors() {
		out = append(out, dto.StageDescriptorFrom(d))
	}
	return out
}
