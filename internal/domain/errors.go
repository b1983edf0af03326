package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Pipeline de presupuestos y facturas.
	ErrIllegalTransition = errors.New("esta transición no está permitida")
	ErrStaleState        = errors.New("el documento ya no está en la etapa esperada, actualiza el tablero")
	ErrNetworkFailure    = errors.New("no se pudo contactar con el servidor")
	ErrDialogBusy        = errors.New("la transición ya se está procesando")
)

// TransitionError error de una transición de etapa con el mensaje legible que
// devolvió el backend. Error() devuelve el mensaje tal cual; Unwrap devuelve la
// categoría (ErrNetworkFailure, ErrStaleState, ErrIllegalTransition, ErrNotFound)
// y, si lo hay, el error de transporte original en Cause.
type TransitionError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *TransitionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "la transición falló"
}

func (e *TransitionError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// NewTransitionError construye un TransitionError; si msg está vacío se usa el texto del sentinel.
func NewTransitionError(kind error, msg string) *TransitionError {
	return &TransitionError{Kind: kind, Message: msg}
}
