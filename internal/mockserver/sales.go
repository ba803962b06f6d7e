package mockserver

import (
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/theirongolddev/stockcast/internal/dataset"
)

// salesPoint is one observation of a SKU.
type salesPoint struct {
	date string
	qty  float64
}

type skuSales struct {
	SKU     string
	Name    string
	Variant string
	Total   float64
	Revenue float64
	points  []salesPoint
}

// series returns quantities in time order, one value per date when the
// dataset is dated and one per row otherwise.
func (s *skuSales) series(dated bool) []float64 {
	if !dated {
		out := make([]float64, len(s.points))
		for i, p := range s.points {
			out[i] = p.qty
		}
		return out
	}
	byDate := make(map[string]float64)
	for _, p := range s.points {
		byDate[p.date] += p.qty
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = byDate[d]
	}
	return out
}

// salesTable is an uploaded dataset aggregated per SKU.
type salesTable struct {
	skus        []*skuSales // first-seen order
	dated       bool
	hasRevenue  bool
	dailyTotals map[string]float64
	skipped     int
}

func (t *salesTable) unitsSold() float64 {
	var n float64
	for _, s := range t.skus {
		n += s.Total
	}
	return n
}

func (t *salesTable) revenue() float64 {
	var n float64
	for _, s := range t.skus {
		n += s.Revenue
	}
	return n
}

// bestSellers returns SKUs by total quantity, highest first.
func (t *salesTable) bestSellers() []*skuSales {
	out := append([]*skuSales(nil), t.skus...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

// sortedDates returns the dates with sales, in order.
func (t *salesTable) sortedDates() []string {
	dates := make([]string, 0, len(t.dailyTotals))
	for d := range t.dailyTotals {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

var errMissingColumns = errors.New("dataset needs a SKU column and a quantity column")

// Header aliases, matched case-insensitively.
var (
	skuColumns     = []string{"sku", "kode_sku", "kode", "product_id", "product_code"}
	nameColumns    = []string{"nama_produk", "produk", "product_name", "product", "nama"}
	variantColumns = []string{"variasi", "variant", "varian"}
	qtyColumns     = []string{"jumlah", "qty", "quantity", "terjual", "total", "sales"}
	dateColumns    = []string{"tanggal", "date", "waktu", "order_date"}
	priceColumns   = []string{"harga", "price", "harga_satuan", "unit_price"}
	revenueColumns = []string{"omzet", "revenue", "total_harga", "subtotal"}
)

func findIndex(header []string, names ...string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	// thousands separators, e.g. 1,250 or 1.250.000
	cleaned := strings.NewReplacer(",", "", ".", "").Replace(s)
	v, err := strconv.ParseFloat(cleaned, 64)
	return v, err == nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseSalesTable reads an uploaded .csv or .xlsx file and aggregates it.
func parseSalesTable(name string, r io.Reader) (*salesTable, error) {
	rows, err := dataset.ReadRows(name, r)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, dataset.ErrEmpty
	}

	header := rows[0]
	skuCol := findIndex(header, skuColumns...)
	qtyCol := findIndex(header, qtyColumns...)
	if skuCol < 0 || qtyCol < 0 {
		return nil, errMissingColumns
	}
	nameCol := findIndex(header, nameColumns...)
	variantCol := findIndex(header, variantColumns...)
	dateCol := findIndex(header, dateColumns...)
	priceCol := findIndex(header, priceColumns...)
	revenueCol := findIndex(header, revenueColumns...)

	t := &salesTable{
		dated:       dateCol >= 0,
		hasRevenue:  priceCol >= 0 || revenueCol >= 0,
		dailyTotals: make(map[string]float64),
	}
	bySKU := make(map[string]*skuSales)

	for _, row := range rows[1:] {
		sku := cell(row, skuCol)
		qty, ok := parseNumber(cell(row, qtyCol))
		if sku == "" || !ok {
			t.skipped++
			continue
		}

		s, seen := bySKU[sku]
		if !seen {
			s = &skuSales{SKU: sku, Name: cell(row, nameCol), Variant: cell(row, variantCol)}
			bySKU[sku] = s
			t.skus = append(t.skus, s)
		}

		date := cell(row, dateCol)
		s.Total += qty
		s.points = append(s.points, salesPoint{date: date, qty: qty})
		if t.dated && date != "" {
			t.dailyTotals[date] += qty
		}

		if v, ok := parseNumber(cell(row, revenueCol)); ok {
			s.Revenue += v
		} else if price, ok := parseNumber(cell(row, priceCol)); ok {
			s.Revenue += price * qty
		}
	}

	if len(t.skus) == 0 {
		return nil, dataset.ErrEmpty
	}
	return t, nil
}

// formatRupiah renders an amount as the backend does, e.g. "Rp 1.250.000".
func formatRupiah(v float64) string {
	n := int64(v + 0.5)
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}
