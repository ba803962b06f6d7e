package dashboard

import (
	"context"
	"io"

	"github.com/theirongolddev/stockcast/internal/forecast"
)

// ProgressReader yields training progress events until the stream ends.
type ProgressReader interface {
	Next() (forecast.TrainingProgress, error)
	Close() error
}

// Backend is the subset of the forecasting service the controller drives.
type Backend interface {
	CheckStatus(ctx context.Context) (*forecast.ServerStatus, error)
	UploadTrain(ctx context.Context, filename string, dataset io.Reader, model forecast.ModelType) (*forecast.Ack, error)
	OpenProgress(ctx context.Context) (ProgressReader, error)
	Reset(ctx context.Context) (*forecast.Ack, error)
	Chat(ctx context.Context, req forecast.ChatRequest) (*forecast.ChatResponse, error)
}

// FlagStore persists the trained flag across restarts.
type FlagStore interface {
	Trained() bool
	SetTrained(trained bool) error
}

// NewBackend adapts a forecast client to Backend.
func NewBackend(c *forecast.Client) Backend {
	return clientBackend{c}
}

type clientBackend struct {
	*forecast.Client
}

func (b clientBackend) OpenProgress(ctx context.Context) (ProgressReader, error) {
	s, err := b.Client.OpenProgress(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}
