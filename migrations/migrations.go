// Package migrations empaqueta los scripts SQL del esquema para que la API
// pueda aplicarlos al arrancar (DB_AUTO_MIGRATE=true).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
