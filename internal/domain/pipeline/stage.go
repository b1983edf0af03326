// Package pipeline define el registro de etapas del pipeline de presupuestos y
// facturas: Draft → Sent → Approved → Invoiced → Paid, más Rejected (solo
// alcanzable desde Sent).
//
// El registro es una tabla estática indexada por el enum Stage; no tiene
// efectos secundarios ni modos de fallo.
package pipeline

import (
	"fmt"
	"strings"
)

// Stage etapa del pipeline. Conjunto cerrado y ordenado.
type Stage uint8

const (
	StageDraft Stage = iota
	StageSent
	StageApproved
	StageInvoiced
	StagePaid
	StageRejected

	stageCount
)

// Descriptor datos de presentación y transiciones permitidas de una etapa.
type Descriptor struct {
	Stage       Stage
	Key         string // valor serializado (draft, sent, ...)
	Label       string
	Description string
	Icon        string
	Color       string // hex, #RRGGBB
	Allowed     []Stage
}

// Transition par (origen, destino) con su descripción legible.
type Transition struct {
	From        Stage
	To          Stage
	Description string
}

var registry = [stageCount]Descriptor{
	StageDraft: {
		Stage: StageDraft, Key: "draft", Label: "Borrador",
		Description: "Presupuestos en preparación, aún sin enviar al cliente",
		Icon:        "file-edit", Color: "#9CA3AF",
		Allowed: []Stage{StageSent},
	},
	StageSent: {
		Stage: StageSent, Key: "sent", Label: "Enviado",
		Description: "Presupuestos enviados a la espera de respuesta del cliente",
		Icon:        "send", Color: "#3B82F6",
		Allowed: []Stage{StageApproved, StageRejected},
	},
	StageApproved: {
		Stage: StageApproved, Key: "approved", Label: "Aprobado",
		Description: "Presupuestos aceptados por el cliente, listos para facturar",
		Icon:        "check-circle", Color: "#10B981",
		Allowed: []Stage{StageInvoiced},
	},
	StageInvoiced: {
		Stage: StageInvoiced, Key: "invoiced", Label: "Facturado",
		Description: "Facturas emitidas pendientes de cobro",
		Icon:        "receipt", Color: "#F59E0B",
		Allowed: []Stage{StagePaid},
	},
	StagePaid: {
		Stage: StagePaid, Key: "paid", Label: "Cobrado",
		Description: "Facturas cobradas por completo",
		Icon:        "wallet", Color: "#059669",
	},
	StageRejected: {
		Stage: StageRejected, Key: "rejected", Label: "Rechazado",
		Description: "Presupuestos rechazados por el cliente",
		Icon:        "x-circle", Color: "#EF4444",
	},
}

// Solo los pares legales tienen descripción. El diálogo de confirmación depende de ello.
var transitions = []Transition{
	{StageDraft, StageSent, "El presupuesto se marcará como enviado al cliente"},
	{StageSent, StageApproved, "El presupuesto se marcará como aprobado por el cliente"},
	{StageSent, StageRejected, "El presupuesto se marcará como rechazado por el cliente"},
	{StageApproved, StageInvoiced, "Se emitirá una factura a partir del presupuesto aprobado"},
	{StageInvoiced, StagePaid, "La factura se marcará como cobrada"},
}

// Stages devuelve las etapas en el orden de las columnas del tablero.
func Stages() []Stage {
	out := make([]Stage, 0, stageCount)
	for s := Stage(0); s < stageCount; s++ {
		out = append(out, s)
	}
	return out
}

// Valid indica si s es uno de los seis valores definidos.
func (s Stage) Valid() bool { return s < stageCount }

// Describe devuelve el descriptor de la etapa. Para valores fuera de rango
// devuelve un descriptor vacío.
func Describe(s Stage) Descriptor {
	if !s.Valid() {
		return Descriptor{Stage: s}
	}
	d := registry[s]
	d.Allowed = append([]Stage(nil), d.Allowed...)
	return d
}

// Descriptors devuelve todos los descriptores en orden de tablero.
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, stageCount)
	for _, s := range Stages() {
		out = append(out, Describe(s))
	}
	return out
}

// AllowedTransitions devuelve las etapas a las que se puede pasar desde s.
func AllowedTransitions(s Stage) []Stage {
	return Describe(s).Allowed
}

// CanTransition indica si el paso from → to está en la tabla de transiciones permitidas.
func CanTransition(from, to Stage) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	for _, a := range registry[from].Allowed {
		if a == to {
			return true
		}
	}
	return false
}

// DescribeTransition devuelve la descripción registrada del par; ok=false si
// el par no es una transición enumerada.
func DescribeTransition(from, to Stage) (string, bool) {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t.Description, true
		}
	}
	return "", false
}

// Transitions devuelve la lista de transiciones legales con su descripción.
func Transitions() []Transition {
	return append([]Transition(nil), transitions...)
}

// Label etiqueta legible de la etapa.
func (s Stage) Label() string { return Describe(s).Label }

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
	return registry[s].Key
}

// ParseStage convierte la clave serializada (insensible a mayúsculas) en Stage.
func ParseStage(raw string) (Stage, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for s := Stage(0); s < stageCount; s++ {
		if registry[s].Key == key {
			return s, nil
		}
	}
	return 0, fmt.Errorf("etapa desconocida: %q", raw)
}

// MarshalText serializa la etapa como su clave.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("etapa inválida: %d", uint8(s))
	}
	return []byte(registry[s].Key), nil
}

// UnmarshalText rechaza cualquier valor fuera de las seis etapas.
func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
