package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/theirongolddev/stockcast/internal/forecast"
)

var errTrainingRunning = errors.New("training already in progress")

// forecastHorizon is the number of days a SKU forecast covers.
const forecastHorizon = 7

// trainingResult is the outcome of one training run.
type trainingResult struct {
	modelInfo  forecast.ModelInfo
	evaluation forecast.GlobalEvaluation
	succeeded  int
	failed     int
	forecasts  map[string]float64 // SKU -> units over forecastHorizon days

	absErr, sqErr, pctErr float64
	errCount, pctCount    int
}

func newTrainingResult(model forecast.ModelType) *trainingResult {
	name := string(model)
	info := forecast.ModelInfo{
		SelectedModel: &name,
		Order:         json.RawMessage(`[1,1,1]`),
	}
	if model == forecast.ModelSARIMA {
		info.SeasonalOrder = json.RawMessage(`[1,1,1,7]`)
	}
	return &trainingResult{modelInfo: info, forecasts: make(map[string]float64)}
}

// fit scores a naive one-step model on the SKU's history and projects its
// mean daily demand over the horizon. SKUs with fewer than two
// observations cannot be evaluated and count as failed.
func (r *trainingResult) fit(s *skuSales, dated bool) {
	series := s.series(dated)

	var mean float64
	for _, v := range series {
		mean += v
	}
	if len(series) > 0 {
		mean /= float64(len(series))
	}
	r.forecasts[s.SKU] = math.Round(mean * forecastHorizon)

	if len(series) < 2 {
		r.failed++
		return
	}
	r.succeeded++
	for i := 1; i < len(series); i++ {
		e := series[i] - series[i-1]
		r.absErr += math.Abs(e)
		r.sqErr += e * e
		r.errCount++
		if series[i] > 0 {
			r.pctErr += math.Abs(e) / series[i]
			r.pctCount++
		}
	}
}

func (r *trainingResult) finish() {
	if r.errCount > 0 {
		mae := roundTo(r.absErr/float64(r.errCount), 2)
		rmse := roundTo(math.Sqrt(r.sqErr/float64(r.errCount)), 2)
		r.evaluation.MAE = &mae
		r.evaluation.RMSE = &rmse
	}
	if r.pctCount > 0 {
		r.evaluation.MAPE = json.RawMessage(fmt.Sprintf(`"%.2f%%"`, r.pctErr/float64(r.pctCount)*100))
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func (s *Server) startTraining(table *salesTable, model forecast.ModelType) error {
	s.mu.Lock()
	if s.training {
		s.mu.Unlock()
		return errTrainingRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTrain = cancel
	s.training = true
	s.trained = false
	s.table = table
	s.result = nil
	s.lastStatus = "Memulai training"
	s.progress = forecast.TrainingProgress{Percent: 0, Status: s.lastStatus}
	s.mu.Unlock()

	s.log.Info("training started",
		zap.String("model", string(model)), zap.Int("skus", len(table.skus)), zap.Int("skipped_rows", table.skipped))
	go s.train(ctx, table, model)
	return nil
}

func (s *Server) stopTraining() {
	s.mu.Lock()
	cancel := s.cancelTrain
	s.cancelTrain = nil
	s.training = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// train fits every SKU, one per limiter tick, publishing progress after
// each. 100 percent is only published once the result is stored.
func (s *Server) train(ctx context.Context, table *salesTable, model forecast.ModelType) {
	limiter := rate.NewLimiter(rate.Every(s.cfg.StepInterval), 1)
	result := newTrainingResult(model)
	n := len(table.skus)

	for i, sku := range table.skus {
		if err := limiter.Wait(ctx); err != nil {
			s.log.Debug("training canceled", zap.Error(err))
			return
		}
		result.fit(sku, table.dated)

		status := fmt.Sprintf("Training SKU %d/%d (%s)", i+1, n, sku.SKU)
		pct := math.Floor(float64(i+1) / float64(n) * 99)
		if !s.advance(ctx, status) {
			return
		}
		s.publishProgress(forecast.TrainingProgress{Percent: pct, Status: status})
	}
	result.finish()

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.training = false
	s.trained = true
	s.result = result
	s.lastStatus = StatusFinished
	s.cancelTrain = nil
	s.mu.Unlock()

	s.log.Info("training finished",
		zap.Int("succeeded", result.succeeded), zap.Int("failed", result.failed))
	s.publishProgress(forecast.TrainingProgress{Percent: 100, Status: StatusFinished})
}

func (s *Server) advance(ctx context.Context, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	s.lastStatus = status
	return true
}
