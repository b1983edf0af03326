package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config opciones del logger.
type Config struct {
	Env     string // development: consola con colores; cualquier otro: JSON
	Level   string // trace, debug, info, warn, error
	Service string // se añade como campo "service" si no está vacío
	// Out destino; os.Stdout si es nil. pipelinectl escribe en stderr para
	// no mezclar logs con la salida json/yaml.
	Out io.Writer
}

// Logger envuelve zerolog.Logger para inyectarlo en los componentes.
type Logger struct {
	zl zerolog.Logger
}

func New(cfg Config) *Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	if cfg.Env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	ctx := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	zl := ctx.Logger()

	// Las librerías que usan zerolog/log escriben por el mismo destino.
	log.Logger = zl
	return &Logger{zl: zl}
}

// Nop descarta todo; para tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// ParseLevel acepta los nombres de zerolog ("warning" también vale). Info si no lo reconoce.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) Trace() *zerolog.Event { return l.zl.Trace() }
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// WithComponent sublogger con el campo component (http, postgres, scheduler, pipelinectl).
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

// Zerolog expone el logger subyacente.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }
