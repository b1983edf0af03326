package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lapublica/pipeline-api/internal/application/budget"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
	"github.com/lapublica/pipeline-api/internal/infrastructure/mongodb"
	infrapdf "github.com/lapublica/pipeline-api/internal/infrastructure/pdf"
	"github.com/lapublica/pipeline-api/internal/infrastructure/postgres"
	httpRouter "github.com/lapublica/pipeline-api/internal/interfaces/http"
	"github.com/lapublica/pipeline-api/internal/scheduler"
	"github.com/lapublica/pipeline-api/migrations"
	"github.com/lapublica/pipeline-api/pkg/config"
	"github.com/lapublica/pipeline-api/pkg/jwt"
	"github.com/lapublica/pipeline-api/pkg/logger"
	"github.com/lapublica/pipeline-api/pkg/money"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, Service: cfg.App.Name})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("la API termina con error")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("aplicación detenida")
}

// run arranca la API y bloquea hasta que ctx se cancela o el servidor falla.
func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info().Str("env", cfg.App.Env).Str("addr", cfg.HTTP.Addr()).Msg("iniciando")

	auth, err := jwt.New(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL())
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}

	dbLog := log.WithComponent("postgres")
	pool, err := postgres.NewPool(ctx, cfg.DB, dbLog)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.DB.AutoMigrate {
		n, err := postgres.Migrate(ctx, pool, migrations.FS, dbLog)
		if err != nil {
			return err
		}
		dbLog.Info().Int("aplicadas", n).Msg("esquema al día")
	}

	items := postgres.NewPipelineItemRepository(pool)
	pipelineUC := budget.NewUseCase(items, postgres.NewPipelineTransitionRepository(pool), postgres.NewTxRunner(pool))

	deps := httpRouter.RouterDeps{
		Pipeline: pipelineUC,
		Reports:  budget.NewReportUseCase(pipelineUC, infrapdf.NewMarotoPDFGenerator(money.Default())),
		Auth:     auth,
	}

	if cfg.Mongo.Enabled() {
		snapshots, closeMongo, err := startSnapshots(ctx, cfg, pipelineUC, items, log)
		if err != nil {
			return err
		}
		defer closeMongo()
		deps.Snapshots = snapshots
	} else {
		log.Warn().Msg("MONGO_URI vacío: fotos de métricas deshabilitadas")
	}

	app := newApp(cfg, log)
	httpRouter.Router(app, deps)

	serveErr := make(chan error, 1)
	go func() { serveErr <- app.Listen(cfg.HTTP.Addr()) }()

	select {
	case err := <-serveErr:
		return fmt.Errorf("servidor HTTP: %w", err)
	case <-ctx.Done():
		log.Info().Msg("señal de apagado recibida")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

// startSnapshots abre Mongo y programa las fotos de métricas. El cierre
// devuelto para el cron antes de desconectar.
func startSnapshots(
	ctx context.Context,
	cfg *config.Config,
	pipelineUC *budget.UseCase,
	items repository.PipelineItemRepository,
	log *logger.Logger,
) (*budget.SnapshotUseCase, func(), error) {
	repo, err := mongodb.NewSnapshotRepository(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("conexión a MongoDB: %w", err)
	}
	uc := budget.NewSnapshotUseCase(pipelineUC, items, repo)

	cron := scheduler.New(cfg.Snapshot.Cron, uc, log)
	if err := cron.Start(); err != nil {
		_ = repo.Close(context.Background())
		return nil, nil, fmt.Errorf("SNAPSHOT_CRON %q: %w", cfg.Snapshot.Cron, err)
	}

	closeFn := func() {
		cron.Stop()
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Close(closeCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("cierre de MongoDB")
		}
	}
	return uc, closeFn, nil
}

func newApp(cfg *config.Config, log *logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env != "development",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           time.Minute,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log))

	// Swagger UI en /docs.
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "La Pública Pipeline API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	return app
}
