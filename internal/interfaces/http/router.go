package http

import (
	"github.com/gofiber/fiber/v2"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Pipeline  PipelineService
	Reports   ReportService   // opcional
	Snapshots SnapshotService // opcional (sin Mongo)
	Auth      TokenVerifier
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.Auth))

	// Pipeline de presupuestos y facturas: lectura para cualquier rol, escritura admin/member.
	p := protected.Group("/pipeline")
	h := NewPipelineHandler(deps.Pipeline, deps.Reports, deps.Snapshots)
	writers := RequireRole(RoleAdmin, RoleMember)

	p.Get("/stages", h.Stages)
	p.Get("/items", h.List)
	p.Post("/items", writers, h.Create)
	p.Get("/items/:id", h.GetByID)
	p.Post("/items/:id/transition", writers, h.Transition)
	p.Get("/items/:id/history", h.History)
	p.Get("/report.pdf", h.Report)
	p.Get("/snapshots", h.Snapshots)
}
