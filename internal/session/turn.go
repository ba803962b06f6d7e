// Package session holds the chat transcript: turns returned by the forecasting
// assistant and the replay context sent back with every question.
package session

import (
	"strings"
	"time"
)

// ChartKind selects how a ChartSpec is drawn.
type ChartKind string

const (
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
)

// Point is one x-axis sample of a chart. Order within a chart is significant.
type Point struct {
	Label string  `json:"name"`
	Value float64 `json:"value"`
}

// ChartSpec describes a chart the client renders from server data.
type ChartSpec struct {
	Title  string    `json:"title"`
	Kind   ChartKind `json:"type" jsonschema:"enum=line,enum=bar"`
	Points []Point   `json:"data"`
}

// Values returns the chart values in x-axis order.
func (c ChartSpec) Values() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Value
	}
	return out
}

// Labels returns the chart labels in x-axis order.
func (c ChartSpec) Labels() []string {
	out := make([]string, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Label
	}
	return out
}

// TableRow is a SKU row exactly as the backend sends it. The backend uses
// two spellings for the product name and two for the quantity depending on
// which query produced the row, so every field is optional except the SKU.
type TableRow struct {
	SKU        string   `json:"sku"`
	Produk     *string  `json:"produk,omitempty"`
	NamaProduk *string  `json:"nama_produk,omitempty"`
	Variasi    *string  `json:"variasi,omitempty"`
	Total      *float64 `json:"total,omitempty"`
	Prediksi7d *float64 `json:"prediksi_7_hari,omitempty"`
	Urgensi    *string  `json:"urgensi,omitempty"`
}

// variantPlaceholder is what the backend sends for products without variants.
const variantPlaceholder = "-"

// Row is the resolved display form of a TableRow.
type Row struct {
	SKU         string
	DisplayName string
	Variant     string // empty when the product has no variant
	Quantity    float64
	Urgency     string
}

// Resolve applies the display precedence rules: name from produk then
// nama_produk, quantity from total then prediksi_7_hari.
func (r TableRow) Resolve() Row {
	row := Row{SKU: r.SKU, DisplayName: r.SKU}

	switch {
	case nonEmpty(r.Produk):
		row.DisplayName = *r.Produk
	case nonEmpty(r.NamaProduk):
		row.DisplayName = *r.NamaProduk
	}

	if nonEmpty(r.Variasi) && strings.TrimSpace(*r.Variasi) != variantPlaceholder {
		row.Variant = *r.Variasi
	}

	switch {
	case r.Total != nil:
		row.Quantity = *r.Total
	case r.Prediksi7d != nil:
		row.Quantity = *r.Prediksi7d
	}

	if r.Urgensi != nil {
		row.Urgency = *r.Urgensi
	}
	return row
}

func (r TableRow) clone() TableRow {
	r.Produk = clonePtr(r.Produk)
	r.NamaProduk = clonePtr(r.NamaProduk)
	r.Variasi = clonePtr(r.Variasi)
	r.Total = clonePtr(r.Total)
	r.Prediksi7d = clonePtr(r.Prediksi7d)
	r.Urgensi = clonePtr(r.Urgensi)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func nonEmpty(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// SummaryStats is the aggregate block some replies carry. Counts are plain
// JSON numbers; summed columns may arrive as floats like 1234.0.
type SummaryStats struct {
	UnitsSold      float64 `json:"total_terjual"`
	Revenue        string  `json:"omzet"` // preformatted by the backend
	UniqueProducts float64 `json:"produk_unik"`
}

// ChatTurn is one completed question/answer exchange.
type ChatTurn struct {
	UserQuery string
	Message   string
	Charts    []ChartSpec
	Rows      []TableRow
	Summary   *SummaryStats
	At        time.Time
}

// clone returns a copy of t that shares no slices or pointers with it.
func (t ChatTurn) clone() ChatTurn {
	out := t
	if t.Charts != nil {
		out.Charts = make([]ChartSpec, len(t.Charts))
		for i, c := range t.Charts {
			c.Points = append([]Point(nil), c.Points...)
			out.Charts[i] = c
		}
	}
	if t.Rows != nil {
		out.Rows = make([]TableRow, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = r.clone()
		}
	}
	if t.Summary != nil {
		s := *t.Summary
		out.Summary = &s
	}
	return out
}

// ResolvedRows returns the display form of every row in the turn.
func (t ChatTurn) ResolvedRows() []Row {
	out := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Resolve()
	}
	return out
}

// HasUrgency reports whether any row carries an urgency label.
func (t ChatTurn) HasUrgency() bool {
	for _, r := range t.Rows {
		if nonEmpty(r.Urgensi) {
			return true
		}
	}
	return false
}
