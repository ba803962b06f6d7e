// Package mockserver is a local stand-in for the forecasting backend. It
// implements the same HTTP contract, trains a naive per-SKU model over the
// uploaded rows and answers chat questions from them, so the client can be
// exercised end to end without the real service.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/stockcast/internal/forecast"
)

// Backend status texts, in the real service's wording.
const (
	StatusNoData   = "Belum ada data"
	StatusFinished = "Selesai"
)

// Config controls the mock backend runtime behavior.
type Config struct {
	Addr string
	// StepInterval paces training progress events, one per SKU.
	StepInterval time.Duration
	// Heartbeat is the interval of keep-alive comments on the progress stream.
	Heartbeat time.Duration
	Logger    *zap.Logger
}

// Server holds the simulated backend state.
type Server struct {
	cfg Config
	log *zap.Logger

	mu          sync.RWMutex
	table       *salesTable
	training    bool
	trained     bool
	lastStatus  string
	progress    forecast.TrainingProgress
	result      *trainingResult
	cancelTrain context.CancelFunc

	nextSubID int
	subs      map[int]chan forecast.TrainingProgress
}

// New returns a mock backend with the provided config.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8000"
	}
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = 300 * time.Millisecond
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		log:        cfg.Logger,
		lastStatus: StatusNoData,
		subs:       make(map[int]chan forecast.TrainingProgress),
	}
}

// Handler returns the HTTP routes of the backend contract.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok\n") })
	r.GET("/check-status", s.handleStatus)
	r.POST("/upload-train", s.handleUpload)
	r.GET("/train-progress", s.handleProgress)
	r.DELETE("/reset-data", s.handleReset)
	r.POST("/chat", s.handleChat)
	return r
}

// Run serves until ctx is canceled, then shuts down and stops any training.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// Request contexts derive from ctx so open progress streams end on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("mock backend listening", zap.String("addr", s.cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mock backend http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.stopTraining()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) snapshotStatus() forecast.ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := forecast.ServerStatus{
		IsTrained:  s.trained,
		LastStatus: s.lastStatus,
	}
	if s.table != nil {
		st.TotalSKU = len(s.table.skus)
	}
	if s.result != nil {
		st.ModelInfo = s.result.modelInfo
		st.GlobalEvaluation = s.result.evaluation
		st.Summary = forecast.TrainingSummary{Success: s.result.succeeded, Failed: s.result.failed}
	}
	return st
}

func (s *Server) handleStatus(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, s.snapshotStatus())
}

type uploadQuery struct {
	ModelType string `form:"model_type" binding:"required,oneof=SARIMA ARIMA"`
}

func (s *Server) handleUpload(c *gin.Context) {
	var q uploadQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "model_type must be SARIMA or ARIMA"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing file field"})
		return
	}
	defer file.Close()

	table, err := parseSalesTable(header.Filename, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if err := s.startTraining(table, forecast.ModelType(q.ModelType)); err != nil {
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, forecast.Ack{
		Status:  "started",
		Message: fmt.Sprintf("training %s on %d SKUs", q.ModelType, len(table.skus)),
	})
}

func (s *Server) handleReset(c *gin.Context) {
	s.stopTraining()

	s.mu.Lock()
	s.table = nil
	s.result = nil
	s.trained = false
	s.training = false
	s.lastStatus = StatusNoData
	s.progress = forecast.TrainingProgress{}
	s.mu.Unlock()

	s.log.Info("data reset")
	c.JSON(http.StatusOK, forecast.Ack{Status: "success", Message: "all data deleted"})
}

func (s *Server) handleProgress(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ch := make(chan forecast.TrainingProgress, 64)
	id, current, active := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current progress immediately so late subscribers catch up.
	if active {
		writeSSE(c.Writer, current)
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			writeComment(c.Writer, "ping")
			c.Writer.Flush()
		case ev := <-ch:
			writeSSE(c.Writer, ev)
			c.Writer.Flush()
		}
	}
}

func (s *Server) addSubscriber(ch chan forecast.TrainingProgress) (int, forecast.TrainingProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id, s.progress, s.training
}

func (s *Server) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// subscriberCount is used by tests to wait for a stream to attach.
func (s *Server) subscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Server) publishProgress(p forecast.TrainingProgress) {
	s.mu.Lock()
	s.progress = p
	for _, ch := range s.subs {
		select {
		case ch <- p:
		default:
		}
	}
	s.mu.Unlock()
}
