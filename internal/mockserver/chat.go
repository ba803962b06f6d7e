package mockserver

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/session"
)

const topN = 5

type chatBody struct {
	Message string               `json:"message" binding:"required"`
	History []session.ReplayTurn `json:"history"`
}

var (
	forecastKeywords = []string{"prediksi", "forecast", "ramal", "restock", "stok", "stock"}
	summaryKeywords  = []string{"ringkas", "summary", "omzet", "revenue", "pendapatan"}
)

func (s *Server) handleChat(c *gin.Context) {
	var body chatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message is required"})
		return
	}

	s.mu.RLock()
	table, result, trained := s.table, s.result, s.trained
	s.mu.RUnlock()

	s.log.Debug("chat", zap.String("message", body.Message), zap.Int("history", len(body.History)))

	if !trained || table == nil || result == nil {
		c.JSON(http.StatusOK, forecast.ChatResponse{
			Message: "The model is not trained yet. Upload a sales dataset first.",
			Type:    "text",
			Status:  "error",
		})
		return
	}
	c.JSON(http.StatusOK, answer(body.Message, table, result))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// answer picks a reply shape from keywords in the question.
func answer(question string, table *salesTable, result *trainingResult) forecast.ChatResponse {
	q := strings.ToLower(question)
	switch {
	case containsAny(q, forecastKeywords):
		return forecastAnswer(table, result)
	case containsAny(q, summaryKeywords):
		return forecast.ChatResponse{
			Message: "Here is the sales summary for the uploaded period.",
			Summary: summarize(table),
			Type:    "summary",
			Status:  "success",
		}
	default:
		return bestSellerAnswer(table)
	}
}

func summarize(table *salesTable) *session.SummaryStats {
	revenue := "-"
	if table.hasRevenue {
		revenue = formatRupiah(table.revenue())
	}
	return &session.SummaryStats{
		UnitsSold:      table.unitsSold(),
		Revenue:        revenue,
		UniqueProducts: float64(len(table.skus)),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func bestSellerAnswer(table *salesTable) forecast.ChatResponse {
	best := table.bestSellers()
	if len(best) > topN {
		best = best[:topN]
	}

	rows := make([]session.TableRow, 0, len(best))
	bar := session.ChartSpec{Title: "Top products by units sold", Kind: session.ChartBar}
	for _, s := range best {
		total := s.Total
		rows = append(rows, session.TableRow{
			SKU:     s.SKU,
			Produk:  optional(s.Name),
			Variasi: optional(s.Variant),
			Total:   &total,
		})
		label := s.Name
		if label == "" {
			label = s.SKU
		}
		bar.Points = append(bar.Points, session.Point{Label: label, Value: s.Total})
	}

	charts := []session.ChartSpec{bar}
	if line, ok := dailyChart(table); ok {
		charts = append(charts, line)
	}

	return forecast.ChatResponse{
		Message: fmt.Sprintf("These are the %d best-selling products.", len(rows)),
		Charts:  charts,
		Data:    rows,
		Summary: summarize(table),
		Type:    "table",
		Status:  "success",
	}
}

func dailyChart(table *salesTable) (session.ChartSpec, bool) {
	if !table.dated || len(table.dailyTotals) < 2 {
		return session.ChartSpec{}, false
	}
	line := session.ChartSpec{Title: "Units sold per day", Kind: session.ChartLine}
	for _, d := range table.sortedDates() {
		line.Points = append(line.Points, session.Point{Label: d, Value: table.dailyTotals[d]})
	}
	return line, true
}

func forecastAnswer(table *salesTable, result *trainingResult) forecast.ChatResponse {
	ranked := append([]*skuSales(nil), table.skus...)
	sortByForecast(ranked, result.forecasts)
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	var peak float64
	for _, s := range ranked {
		peak = max(peak, result.forecasts[s.SKU])
	}

	rows := make([]session.TableRow, 0, len(ranked))
	bar := session.ChartSpec{Title: fmt.Sprintf("Forecast, next %d days", forecastHorizon), Kind: session.ChartBar}
	for _, s := range ranked {
		units := result.forecasts[s.SKU]
		urgency := urgencyFor(units, peak)
		rows = append(rows, session.TableRow{
			SKU:        s.SKU,
			NamaProduk: optional(s.Name),
			Variasi:    optional(s.Variant),
			Prediksi7d: &units,
			Urgensi:    &urgency,
		})
		bar.Points = append(bar.Points, session.Point{Label: s.SKU, Value: units})
	}

	return forecast.ChatResponse{
		Message: fmt.Sprintf("Projected demand for the next %d days. Restock the high-urgency items first.", forecastHorizon),
		Charts:  []session.ChartSpec{bar},
		Data:    rows,
		Type:    "forecast",
		Status:  "success",
	}
}

func sortByForecast(skus []*skuSales, forecasts map[string]float64) {
	sort.SliceStable(skus, func(i, j int) bool {
		return forecasts[skus[i].SKU] > forecasts[skus[j].SKU]
	})
}

func urgencyFor(units, peak float64) string {
	if peak <= 0 {
		return "Rendah"
	}
	switch ratio := units / peak; {
	case ratio >= 0.66:
		return "Tinggi"
	case ratio >= 0.33:
		return "Sedang"
	default:
		return "Rendah"
	}
}
