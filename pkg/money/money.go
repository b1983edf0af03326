// Package money formatea importes en euros según el idioma.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLanguage idioma de los importes en el tablero y los informes.
var DefaultLanguage = language.Catalan

// Formatter formatea importes en EUR con separadores del idioma.
type Formatter struct {
	p *message.Printer
}

// NewFormatter construye un formateador para el idioma dado.
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{p: message.NewPrinter(tag)}
}

// Default formateador en DefaultLanguage.
func Default() *Formatter { return NewFormatter(DefaultLanguage) }

// EUR "1.234,50 €".
func (f *Formatter) EUR(d decimal.Decimal) string {
	return f.p.Sprintf("%v €", number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

// Percent ratio 0..1 como porcentaje con un decimal ("33,3 %").
func (f *Formatter) Percent(ratio decimal.Decimal) string {
	return f.p.Sprintf("%v %%", number.Decimal(ratio.Mul(decimal.NewFromInt(100)).InexactFloat64(), number.Scale(1)))
}
