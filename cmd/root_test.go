package cmd

import (
	"fmt"
	"strings"
	"testing"

	"github.com/theirongolddev/stockcast/internal/dataset"
	"github.com/theirongolddev/stockcast/internal/forecast"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("GET /check-status: %w", forecast.ErrUnavailable), "not reachable"},
		{fmt.Errorf("loading sales.txt: %w", dataset.ErrUnsupported), "unsupported file type"},
		{fmt.Errorf("plain failure"), "plain failure"},
	}
	for _, tt := range tests {
		if got := userMessage(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("userMessage(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}
