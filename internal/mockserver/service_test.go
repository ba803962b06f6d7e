package mockserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/stockcast/internal/dashboard"
	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/store"
)

const salesCSV = `tanggal,sku,nama_produk,variasi,jumlah,harga
2024-01-01,KOP-01,Kopi Susu,-,4,15000
2024-01-02,KOP-01,Kopi Susu,-,6,15000
2024-01-03,KOP-01,Kopi Susu,-,6,15000
2024-01-01,TEH-02,Teh Manis,500ml,2,8000
2024-01-02,TEH-02,Teh Manis,500ml,3,8000
2024-01-01,ROT-03,Roti Bakar,,1,12000
`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer() *Server {
	return New(Config{StepInterval: time.Millisecond})
}

func TestCheckStatus_BeforeUpload(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/check-status?t=1", nil)
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var st forecast.ServerStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.IsTrained)
	assert.Equal(t, StatusNoData, st.LastStatus)
}

func multipartUpload(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, _ = part.Write([]byte(content))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload_Validation(t *testing.T) {
	s := newTestServer()
	h := s.Handler()

	tests := []struct {
		name    string
		query   string
		file    string
		content string
	}{
		{"bad model", "?model_type=LSTM", "s.csv", salesCSV},
		{"missing model", "", "s.csv", salesCSV},
		{"missing columns", "?model_type=ARIMA", "s.csv", "a,b\n1,2\n"},
		{"unsupported", "?model_type=ARIMA", "s.txt", salesCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartUpload(t, tt.file, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/upload-train"+tt.query, body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "detail")
		})
	}
}

func TestChat_NotTrainedReportsError(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi","history":[]}`))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp forecast.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
}

func TestParseSalesTable(t *testing.T) {
	table, err := parseSalesTable("s.csv", strings.NewReader(salesCSV+"2024-01-04,,x,,1,1\n2024-01-04,KOP-01,Kopi Susu,-,n/a,1\n"))
	require.NoError(t, err)

	require.Len(t, table.skus, 3)
	assert.Equal(t, 2, table.skipped)
	assert.True(t, table.dated)
	assert.True(t, table.hasRevenue)
	assert.Equal(t, 22.0, table.unitsSold())
	assert.Equal(t, "KOP-01", table.bestSellers()[0].SKU)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, table.sortedDates())
	assert.Equal(t, "Rp 292.000", formatRupiah(table.revenue()))
}

func TestFormatRupiah(t *testing.T) {
	assert.Equal(t, "Rp 0", formatRupiah(0))
	assert.Equal(t, "Rp 999", formatRupiah(999))
	assert.Equal(t, "Rp 1.250.000", formatRupiah(1_250_000))
}

func TestTrainingResult_Evaluation(t *testing.T) {
	r := newTrainingResult(forecast.ModelSARIMA)
	r.fit(&skuSales{SKU: "A", points: []salesPoint{{"d1", 2}, {"d2", 4}, {"d3", 4}}}, true)
	r.fit(&skuSales{SKU: "B", points: []salesPoint{{"d1", 5}}}, true)
	r.finish()

	assert.Equal(t, 1, r.succeeded)
	assert.Equal(t, 1, r.failed)
	require.NotNil(t, r.evaluation.MAE)
	assert.InDelta(t, 1.0, *r.evaluation.MAE, 1e-9)
	assert.InDelta(t, 1.41, *r.evaluation.RMSE, 1e-9)
	assert.JSONEq(t, `"25.00%"`, string(r.evaluation.MAPE))
	assert.Equal(t, 23.0, r.forecasts["A"])
	assert.Equal(t, 35.0, r.forecasts["B"])
	assert.NotNil(t, r.modelInfo.SeasonalOrder)

	arima := newTrainingResult(forecast.ModelARIMA)
	assert.Nil(t, arima.modelInfo.SeasonalOrder)
}

func TestUrgencyFor(t *testing.T) {
	assert.Equal(t, "Tinggi", urgencyFor(10, 10))
	assert.Equal(t, "Sedang", urgencyFor(5, 10))
	assert.Equal(t, "Rendah", urgencyFor(1, 10))
	assert.Equal(t, "Rendah", urgencyFor(0, 0))
}

// TestDashboardAgainstMockBackend drives the real client and controller
// through a full train, chat and reset cycle.
func TestDashboardAgainstMockBackend(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	client, err := forecast.NewClient(srv.URL)
	require.NoError(t, err)
	flag := &store.MemoryFlag{}
	ctrl := dashboard.New(dashboard.NewBackend(client), flag, dashboard.Options{DismissDelay: time.Millisecond})
	t.Cleanup(ctrl.Close)

	ctx := context.Background()
	assert.Equal(t, dashboard.PhaseUntrained, ctrl.Reconcile(ctx))

	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0o600))
	require.NoError(t, ctrl.StartTraining(ctx, path, forecast.ModelSARIMA))

	require.Eventually(t, func() bool {
		snap := ctrl.Snapshot()
		return snap.Trained && snap.Phase == dashboard.PhaseReady && snap.Status != nil && snap.Status.IsTrained
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, flag.Trained())
	require.Eventually(t, func() bool { return !ctrl.Snapshot().UploadOpen }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.subscriberCount() == 0 }, time.Second, 5*time.Millisecond)

	summary := ctrl.Snapshot().Status.Summarize()
	assert.Equal(t, "SARIMA", summary.SelectedModel)
	assert.Equal(t, 3, summary.TotalSKU)
	assert.Equal(t, 2, summary.Succeeded)
	assert.NotEmpty(t, summary.MAPE)

	ctrl.SetInput("produk terlaris?")
	require.NoError(t, ctrl.SendMessage(ctx))
	ctrl.SetInput("prediksi minggu depan")
	require.NoError(t, ctrl.SendMessage(ctx))

	turns := ctrl.Snapshot().Turns
	require.Len(t, turns, 2)
	best := turns[0].ResolvedRows()
	require.NotEmpty(t, best)
	assert.Equal(t, "Kopi Susu", best[0].DisplayName)
	assert.Equal(t, 16.0, best[0].Quantity)
	assert.Empty(t, best[0].Variant)
	require.NotNil(t, turns[0].Summary)
	assert.Equal(t, 3.0, turns[0].Summary.UniqueProducts)
	require.Len(t, turns[0].Charts, 2)

	fc := turns[1].ResolvedRows()
	require.NotEmpty(t, fc)
	assert.Equal(t, "Tinggi", fc[0].Urgency)
	assert.True(t, turns[1].HasUrgency())

	ctrl.RequestReset()
	require.NoError(t, ctrl.ConfirmReset(ctx))
	snap := ctrl.Snapshot()
	assert.False(t, snap.Trained)
	assert.Empty(t, snap.Turns)
	assert.Equal(t, dashboard.PhaseUntrained, snap.Phase)
}
