package forecast

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/theirongolddev/stockcast/internal/session"
)

// ModelType is the forecasting model family the backend trains.
type ModelType string

const (
	ModelSARIMA ModelType = "SARIMA"
	ModelARIMA  ModelType = "ARIMA"
)

// ModelTypes lists the supported models, default first.
var ModelTypes = []ModelType{ModelSARIMA, ModelARIMA}

// ParseModelType accepts a model name in any case.
func ParseModelType(s string) (ModelType, bool) {
	for _, m := range ModelTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, true
		}
	}
	return "", false
}

// ServerStatus is the raw response of the status endpoint.
type ServerStatus struct {
	IsTrained        bool             `json:"is_trained"`
	TotalSKU         int              `json:"total_sku"`
	LastStatus       string           `json:"last_status"`
	ModelInfo        ModelInfo        `json:"model_info"`
	GlobalEvaluation GlobalEvaluation `json:"global_evaluation"`
	Summary          TrainingSummary  `json:"summary"`
}

// ModelInfo describes the model chosen by the last training run.
type ModelInfo struct {
	SelectedModel *string         `json:"selected_model"`
	Order         json.RawMessage `json:"order,omitempty" jsonschema:"type=array"`
	SeasonalOrder json.RawMessage `json:"seasonal_order,omitempty" jsonschema:"type=array"`
}

// GlobalEvaluation holds error metrics across all SKUs.
// MAPE arrives as a number or a preformatted string, so it is kept raw.
type GlobalEvaluation struct {
	MAE  *float64        `json:"mae,omitempty"`
	RMSE *float64        `json:"rmse,omitempty"`
	MAPE json.RawMessage `json:"mape,omitempty" jsonschema:"type=string"`
}

// TrainingSummary counts per-SKU training outcomes.
type TrainingSummary struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// TrainingProgress is one event from the progress stream.
type TrainingProgress struct {
	Percent float64 `json:"percent"`
	Status  string  `json:"status"`
}

// Done reports whether the event marks the end of training.
func (p TrainingProgress) Done() bool { return p.Percent >= 100 }

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Message string               `json:"message"`
	History []session.ReplayTurn `json:"history"`
}

// ChatResponse is the reply to a chat call.
type ChatResponse struct {
	Message string                `json:"message"`
	Charts  []session.ChartSpec   `json:"charts,omitempty"`
	Data    []session.TableRow    `json:"data,omitempty"`
	Summary *session.SummaryStats `json:"summary,omitempty"`
	Type    string                `json:"type,omitempty"`
	Status  string                `json:"status,omitempty"`
}

// Ack is the generic acknowledgement returned by mutating endpoints.
type Ack struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// ModelSummary is the display-ready view of a ServerStatus.
type ModelSummary struct {
	SelectedModel string // empty when unknown
	Order         string
	SeasonalOrder string // empty when the model has no seasonal component
	TotalSKU      int
	Succeeded     int
	Failed        int
	SuccessRatio  float64 // 0.0-1.0, zero when TotalSKU is zero
	MAE           *float64
	RMSE          *float64
	MAPE          string // empty when absent
}

// Summarize flattens the status snapshot for display.
func (s *ServerStatus) Summarize() ModelSummary {
	if s == nil {
		return ModelSummary{}
	}
	m := ModelSummary{
		Order:         formatOrder(s.ModelInfo.Order),
		SeasonalOrder: formatOrder(s.ModelInfo.SeasonalOrder),
		TotalSKU:      s.TotalSKU,
		Succeeded:     s.Summary.Success,
		Failed:        s.Summary.Failed,
		MAE:           s.GlobalEvaluation.MAE,
		RMSE:          s.GlobalEvaluation.RMSE,
		MAPE:          parseMAPE(s.GlobalEvaluation.MAPE),
	}
	if s.ModelInfo.SelectedModel != nil {
		m.SelectedModel = *s.ModelInfo.SelectedModel
	}
	if s.TotalSKU > 0 {
		m.SuccessRatio = float64(s.Summary.Success) / float64(s.TotalSKU)
		if m.SuccessRatio > 1 {
			m.SuccessRatio = 1
		}
	}
	return m
}

// formatOrder renders an order tuple such as [1,1,1] as "(1, 1, 1)".
// Anything that is not an array of numbers is shown as-is.
func formatOrder(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var nums []float64
	if err := json.Unmarshal(raw, &nums); err == nil {
		parts := make([]string, len(nums))
		for i, n := range nums {
			parts[i] = strconv.FormatFloat(n, 'f', -1, 64)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// parseMAPE defensively parses the polymorphic MAPE field.
// Handles numbers (12.4) and strings ("12.4%" or "12.4").
func parseMAPE(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', 2, 64) + "%"
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return ""
		}
		if v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err == nil {
			return strconv.FormatFloat(v, 'f', 2, 64) + "%"
		}
		return s
	}
	return ""
}
