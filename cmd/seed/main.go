// seed genera un script SQL para poblar pipeline_items a partir de un CSV
// exportado de la hoja de cálculo comercial.
//
// Uso: go run ./cmd/seed [-encoding windows-1252] [-out ruta.sql] documentos.csv
// Por defecto escribe migrations/002_seed_pipeline.sql en la raíz del módulo.
//
// Columnas esperadas (con cabecera):
//
//	company_id,owner_id,kind,number,company,total,issue_date,due_date,paid_percentage,stage
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
)

// Espacio de nombres para ids deterministas: volver a generar el script no
// duplica documentos.
var seedNamespace = uuid.MustParse("6f1c2a9e-8d3b-4c55-9a0e-3f7b1d2c4e60")

var columns = []string{
	"company_id", "owner_id", "kind", "number", "company",
	"total", "issue_date", "due_date", "paid_percentage", "stage",
}

type seedRow struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	OwnerID   uuid.UUID
	Kind      string
	Number    string
	Company   string
	Total     decimal.Decimal
	IssueDate time.Time
	DueDate   *time.Time
	Paid      *int
	Stage     pipeline.Stage
}

func main() {
	encoding := flag.String("encoding", "utf-8", "codificación del CSV: utf-8, windows-1252 o iso-8859-1")
	outPath := flag.String("out", "", "script de salida (por defecto migrations/002_seed_pipeline.sql)")
	flag.Parse()

	csvPath := "documentos.csv"
	if flag.NArg() > 0 {
		csvPath = flag.Arg(0)
	}
	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	in, err := decodeReader(f, *encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Codificación: %v\n", err)
		os.Exit(1)
	}
	rows, err := parseRows(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
		os.Exit(1)
	}

	if *outPath == "" {
		*outPath = filepath.Join(findModuleRoot(), "migrations", "002_seed_pipeline.sql")
	}
	out, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := writeSQL(out, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Escribir SQL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generado %s: %d documentos\n", *outPath, len(rows))
}

// decodeReader convierte a UTF-8 las exportaciones de Excel en Windows.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "iso-8859-1", "latin1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("codificación no soportada: %s", encoding)
	}
}

// parseRows lee y valida el CSV completo. Acepta ',' o ';' como separador.
func parseRows(r io.Reader) ([]seedRow, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.TrimPrefix(string(raw), "\ufeff")
	cr := csv.NewReader(strings.NewReader(text))
	if first, _, _ := strings.Cut(text, "\n"); strings.Count(first, ";") > strings.Count(first, ",") {
		cr.Comma = ';'
	}
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("cabecera: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range columns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("cabecera: falta la columna %s", c)
		}
	}

	var out []seedRow
	seen := make(map[string]int)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		get := func(col string) string {
			i := index[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		row, err := parseRow(get)
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		key := row.CompanyID.String() + "|" + row.Kind + "|" + row.Number
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("línea %d: %s %s repetido (línea %d)", line, row.Kind, row.Number, prev)
		}
		seen[key] = line
		out = append(out, row)
	}
	return out, nil
}

func parseRow(get func(string) string) (seedRow, error) {
	var row seedRow
	var err error

	if row.CompanyID, err = uuid.Parse(get("company_id")); err != nil {
		return row, fmt.Errorf("company_id: %w", err)
	}
	if row.OwnerID, err = uuid.Parse(get("owner_id")); err != nil {
		return row, fmt.Errorf("owner_id: %w", err)
	}
	row.Kind = strings.ToLower(get("kind"))
	if row.Kind != entity.KindQuote && row.Kind != entity.KindInvoice {
		return row, fmt.Errorf("kind debe ser quote o invoice, no %q", row.Kind)
	}
	row.Number = get("number")
	row.Company = get("company")
	if row.Number == "" || row.Company == "" {
		return row, errors.New("number y company son obligatorios")
	}
	if row.Total, err = parseAmount(get("total")); err != nil {
		return row, fmt.Errorf("total: %w", err)
	}
	if row.IssueDate, err = parseDate(get("issue_date")); err != nil {
		return row, fmt.Errorf("issue_date: %w", err)
	}
	if s := get("due_date"); s != "" {
		due, err := parseDate(s)
		if err != nil {
			return row, fmt.Errorf("due_date: %w", err)
		}
		row.DueDate = &due
	}
	if s := get("paid_percentage"); s != "" {
		p, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
		if err != nil || p < 0 || p > 100 {
			return row, fmt.Errorf("paid_percentage fuera de rango: %q", s)
		}
		row.Paid = &p
	}
	row.Stage = pipeline.StageDraft
	if s := get("stage"); s != "" {
		if row.Stage, err = pipeline.ParseStage(s); err != nil {
			return row, err
		}
	}
	row.ID = uuid.NewSHA1(seedNamespace, []byte(row.CompanyID.String()+"|"+row.Kind+"|"+row.Number))
	return row, nil
}

// parseAmount acepta "1234.50", "1234,50" y "1.234,50".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€"))
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("no puede ser negativo")
	}
	return d.Round(2), nil
}

// parseDate acepta ISO (2024-03-01) y el formato local (01/03/2024).
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("fecha inválida %q", s)
}

func writeSQL(w io.Writer, rows []seedRow) error {
	var b strings.Builder
	b.WriteString("-- Documentos iniciales del pipeline\n")
	b.WriteString("-- Generado por cmd/seed\n\n")
	for _, r := range rows {
		b.WriteString("INSERT INTO pipeline_items (id, company_id, owner_id, kind, number, company, total, issue_date, due_date, paid_percentage, stage)\n")
		fmt.Fprintf(&b, "VALUES ('%s', '%s', '%s', '%s', '%s', '%s', %s, '%s', %s, %s, '%s')\n",
			r.ID, r.CompanyID, r.OwnerID, r.Kind,
			escapeSQL(r.Number), escapeSQL(r.Company),
			r.Total.StringFixed(2), r.IssueDate.Format("2006-01-02"),
			sqlDate(r.DueDate), sqlInt(r.Paid), r.Stage)
		b.WriteString("ON CONFLICT (company_id, kind, number) DO NOTHING;\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func sqlDate(t *time.Time) string {
	if t == nil {
		return "NULL"
	}
	return "'" + t.Format("2006-01-02") + "'"
}

func sqlInt(p *int) string {
	if p == nil {
		return "NULL"
	}
	return strconv.Itoa(*p)
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
