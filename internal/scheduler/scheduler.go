// Package scheduler tareas programadas del servicio (fotos nocturnas de métricas).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lapublica/pipeline-api/pkg/logger"
)

const snapshotTimeout = 5 * time.Minute

// SnapshotTaker lo implementa budget.SnapshotUseCase.
type SnapshotTaker interface {
	TakeAll(ctx context.Context) (int, error)
}

// Scheduler gestiona las tareas cron.
type Scheduler struct {
	cron      *cron.Cron
	snapshots SnapshotTaker
	spec      string
	log       *logger.Logger
}

// New construye el scheduler. spec es una expresión cron de 5 campos.
func New(spec string, snapshots SnapshotTaker, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		cron:      cron.New(),
		snapshots: snapshots,
		spec:      spec,
		log:       log.WithComponent("scheduler"),
	}
}

// Start registra las tareas y arranca el cron.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.takeSnapshots); err != nil {
		return fmt.Errorf("programar snapshots (%q): %w", s.spec, err)
	}
	s.log.Info().Str("spec", s.spec).Msg("scheduler iniciado")
	s.cron.Start()
	return nil
}

// Stop detiene el cron y espera a que terminen las tareas en curso.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler detenido")
}

// RunSnapshots ejecuta la foto de métricas fuera de programa.
func (s *Scheduler) RunSnapshots(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	start := time.Now()
	n, err := s.snapshots.TakeAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Int("saved", n).Msg("snapshots del pipeline incompletos")
		return n, err
	}
	s.log.Info().Int("saved", n).Dur("took", time.Since(start)).Msg("snapshots del pipeline guardados")
	return n, nil
}

func (s *Scheduler) takeSnapshots() {
	_, _ = s.RunSnapshots(context.Background())
}
