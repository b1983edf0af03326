package dto

// Límites del historial de snapshots, compartidos por la API y el caso de uso.
const (
	DefaultSnapshotLimit = 20
	MaxSnapshotLimit     = 100
)

// SnapshotQuery parámetros de GET /api/pipeline/snapshots.
type SnapshotQuery struct {
	Limit int `query:"limit"`
}

// Normalize aplica el límite por defecto y recorta a MaxSnapshotLimit.
func (q *SnapshotQuery) Normalize() {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultSnapshotLimit
	case q.Limit > MaxSnapshotLimit:
		q.Limit = MaxSnapshotLimit
	}
}

// ErrorResponse cuerpo de los errores HTTP. Message es el texto que ve el usuario.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
