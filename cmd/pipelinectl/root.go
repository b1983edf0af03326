package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lapublica/pipeline-api/internal/infrastructure/backend"
	"github.com/lapublica/pipeline-api/pkg/config"
	"github.com/lapublica/pipeline-api/pkg/logger"
	"github.com/lapublica/pipeline-api/pkg/money"
)

var version = "0.1.0"

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// cli estado compartido por los subcomandos; se rellena en PersistentPreRunE.
type cli struct {
	apiURL   string
	token    string
	owner    string
	kind     string
	output   string
	timeout  time.Duration
	logLevel string

	scope  backend.Scope
	cfg    config.ClientConfig
	jwt    config.JWTConfig
	log    *logger.Logger
	money  *money.Formatter
	out    io.Writer
	in     io.Reader
}

func (c *cli) api() *backend.Client {
	return backend.NewClient(c.cfg, c.scope).WithLogger(c.log.WithComponent("backend"))
}

func newRootCmd() *cobra.Command {
	c := &cli{money: money.Default()}

	root := &cobra.Command{
		Use:   "pipelinectl",
		Short: "Cliente del pipeline de presupuestos y facturas",
		Long: `pipelinectl consulta y mueve documentos del pipeline
Draft → Sent → Approved → Invoiced → Paid (y Sent → Rejected).

La configuración se lee de PIPELINE_API_URL, PIPELINE_API_TOKEN y
PIPELINE_API_TIMEOUT_SECONDS (o de .env); los flags tienen prioridad.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.apiURL, "api-url", "", "URL base de la API (PIPELINE_API_URL)")
	flags.StringVar(&c.token, "token", "", "token JWT (PIPELINE_API_TOKEN)")
	flags.StringVar(&c.owner, "owner", "", "limitar a los documentos de un usuario")
	flags.StringVar(&c.kind, "kind", "", "limitar a quote o invoice")
	flags.StringVarP(&c.output, "output", "o", outputTable, "formato de salida: table, json o yaml")
	flags.DurationVar(&c.timeout, "timeout", 0, "timeout de cada llamada (por defecto PIPELINE_API_TIMEOUT_SECONDS)")
	flags.StringVar(&c.logLevel, "log-level", "", "nivel de log (por defecto LOG_LEVEL)")

	root.AddCommand(
		newBoardCmd(c),
		newListCmd(c),
		newStatsCmd(c),
		newMoveCmd(c),
		newHistoryCmd(c),
		newStagesCmd(c),
		newTokenCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	switch c.output {
	case outputTable, outputJSON, outputYAML:
	default:
		return fmt.Errorf("formato de salida desconocido %q (table, json o yaml)", c.output)
	}
	if k := strings.ToLower(c.kind); k != "" && k != "quote" && k != "invoice" {
		return fmt.Errorf("--kind debe ser quote o invoice")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if c.logLevel != "" {
		level = c.logLevel
	}
	// Los logs van a stderr para no mezclarse con la salida json/yaml.
	c.log = logger.New(logger.Config{Env: "development", Level: level, Out: cmd.ErrOrStderr()}).
		WithComponent("pipelinectl")

	c.cfg = cfg.Client
	c.jwt = cfg.JWT
	if c.apiURL != "" {
		c.cfg.BaseURL = c.apiURL
	}
	if c.token != "" {
		c.cfg.Token = c.token
	}
	if c.timeout > 0 {
		c.cfg.Timeout = c.timeout
	}
	c.scope = backend.Scope{OwnerID: c.owner, Kind: strings.ToLower(c.kind)}
	c.out = cmd.OutOrStdout()
	c.in = cmd.InOrStdin()

	c.log.Debug().
		Str("api_url", c.cfg.BaseURL).
		Str("owner", c.owner).
		Str("kind", c.kind).
		Msg("configuración cargada")
	return nil
}
