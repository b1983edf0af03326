// pipelinectl cliente de línea de comandos del pipeline de presupuestos y facturas.
//
// Uso:
//
//	pipelinectl board                       # tablero Kanban interactivo
//	pipelinectl list -o yaml                # documentos del alcance
//	pipelinectl stats                       # métricas por etapa
//	pipelinectl move <id> approved --yes    # transición con confirmación
//	pipelinectl history <id>                # historial de transiciones
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
