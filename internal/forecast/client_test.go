package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/stockcast/internal/session"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsNonHTTP(t *testing.T) {
	_, err := NewClient("ftp://example.com")
	assert.Error(t, err)

	c, err := NewClient(" http://localhost:8000/ ")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
}

func TestCheckStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/check-status", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("t"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `{
			"is_trained": true,
			"total_sku": 40,
			"last_status": "Selesai",
			"model_info": {"selected_model": "SARIMA", "order": [1,1,1], "seasonal_order": [0,1,1,7]},
			"global_evaluation": {"mae": 2.5, "rmse": 3.1, "mape": "12.4%"},
			"summary": {"success": 38, "failed": 2}
		}`)
	}))

	st, err := c.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsTrained)
	assert.Equal(t, "Selesai", st.LastStatus)

	m := st.Summarize()
	assert.Equal(t, "SARIMA", m.SelectedModel)
	assert.Equal(t, "(1, 1, 1)", m.Order)
	assert.Equal(t, "(0, 1, 1, 7)", m.SeasonalOrder)
	assert.InDelta(t, 0.95, m.SuccessRatio, 1e-9)
	assert.Equal(t, "12.40%", m.MAPE)
	require.NotNil(t, m.MAE)
	assert.InDelta(t, 2.5, *m.MAE, 1e-9)
}

func TestSummarize_MissingFields(t *testing.T) {
	var st ServerStatus
	require.NoError(t, json.Unmarshal([]byte(`{"is_trained":false,"total_sku":0,"last_status":"",
		"model_info":{"selected_model":null,"order":null,"seasonal_order":null},
		"global_evaluation":{},"summary":{"success":0,"failed":0}}`), &st))

	m := st.Summarize()
	assert.Empty(t, m.SelectedModel)
	assert.Empty(t, m.SeasonalOrder)
	assert.Zero(t, m.SuccessRatio)
	assert.Nil(t, m.MAE)
	assert.Empty(t, m.MAPE)

	var nilStatus *ServerStatus
	assert.Equal(t, ModelSummary{}, nilStatus.Summarize())
}

func TestParseMAPE(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`12.345`, "12.35%"},
		{`"8.1%"`, "8.10%"},
		{`"7"`, "7.00%"},
		{`"n/a"`, "n/a"},
		{`null`, ""},
		{`""`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		if got := parseMAPE(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("parseMAPE(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestUploadTrain_MultipartFileField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload-train", r.URL.Path)
		assert.Equal(t, "ARIMA", r.URL.Query().Get("model_type"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "sales.csv", hdr.Filename)
		assert.Equal(t, "sku,qty\nA,1\n", string(body))
		_, _ = io.WriteString(w, `{"status":"started"}`)
	}))

	ack, err := c.UploadTrain(context.Background(), "sales.csv", strings.NewReader("sku,qty\nA,1\n"), ModelARIMA)
	require.NoError(t, err)
	assert.Equal(t, "started", ack.Status)
}

func TestChat_SendsReplayContext(t *testing.T) {
	var got map[string]json.RawMessage
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"message":"ok","type":"table","status":"success",
			"data":[{"sku":"A","produk":"Kopi","total":42}],
			"charts":[{"title":"t","type":"bar","data":[{"name":"Mon","value":3}]}],
			"summary":{"total_terjual":42,"omzet":"Rp 1.000","produk_unik":1}}`)
	}))

	resp, err := c.Chat(context.Background(), ChatRequest{Message: "top sku"})
	require.NoError(t, err)
	assert.JSONEq(t, `"top sku"`, string(got["message"]))
	assert.JSONEq(t, `[]`, string(got["history"]))

	require.Len(t, resp.Data, 1)
	assert.Equal(t, 42.0, resp.Data[0].Resolve().Quantity)
	require.Len(t, resp.Charts, 1)
	assert.Equal(t, session.ChartBar, resp.Charts[0].Kind)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, "Rp 1.000", resp.Summary.Revenue)
}

func TestChat_SummaryAcceptsFloatCounts(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"ok","status":"success",
			"summary":{"total_terjual":1234.0,"omzet":"Rp 9.000","produk_unik":7}}`)
	}))

	resp, err := c.Chat(context.Background(), ChatRequest{Message: "omzet minggu ini"})
	require.NoError(t, err)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 1234.0, resp.Summary.UnitsSold)
	assert.Equal(t, 7.0, resp.Summary.UniqueProducts)
}

func TestChat_ErrorStatusIsFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"model not trained","status":"error"}`)
	}))

	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServer))
	assert.Contains(t, err.Error(), "model not trained")
}

func TestStatusErrors(t *testing.T) {
	codes := map[int]error{
		http.StatusInternalServerError: ErrServer,
		http.StatusBadRequest:          ErrRejected,
		http.StatusNotFound:            ErrRejected,
	}
	for code, want := range codes {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = io.WriteString(w, `{"detail":"boom"}`)
		}))
		_, err := c.Reset(context.Background())
		require.Error(t, err, "code %d", code)
		assert.True(t, errors.Is(err, want), "code %d: %v", code, err)
		assert.Contains(t, err.Error(), "boom")
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, WithTimeout(time.Second))
	require.NoError(t, err)
	_, err = c.CheckStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestProgressStream_ReadsEventsInOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/train-progress", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, ": keepalive\n\n")
		_, _ = io.WriteString(w, "data: {\"percent\": 10, \"status\": \"Processing row 1/10\"}\n\n")
		_, _ = io.WriteString(w, "event: progress\r\ndata: not json\r\n\r\n")
		_, _ = io.WriteString(w, "data: {\"percent\": 55,\ndata: \"status\": \"half\"}\n\n")
		_, _ = fmt.Fprintf(w, "data: {\"percent\": 100, \"status\": \"Selesai\"}")
	}))

	s, err := c.OpenProgress(context.Background())
	require.NoError(t, err)
	defer s.Close()

	var got []TrainingProgress
	for {
		p, err := s.Next()
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
		got = append(got, p)
	}

	require.Len(t, got, 3)
	assert.Equal(t, 10.0, got[0].Percent)
	assert.Equal(t, "half", got[1].Status)
	assert.True(t, got[2].Done())
	assert.NoError(t, s.Close())
}

func TestProgressStream_CloseUnblocksNext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer close(release)

	s, err := c.OpenProgress(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Next()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = s.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errStreamClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestSchema(t *testing.T) {
	for _, name := range SchemaNames() {
		m, err := Schema(name)
		require.NoError(t, err, name)
		assert.Contains(t, m, "properties", name)
	}
	_, err := Schema("Nope")
	assert.Error(t, err)
}
