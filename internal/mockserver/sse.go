package mockserver

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/theirongolddev/stockcast/internal/forecast"
)

// writeSSE writes one unnamed event; the client reads the data field only.
func writeSSE(w io.Writer, p forecast.TrainingProgress) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeComment(w io.Writer, text string) {
	_, _ = fmt.Fprintf(w, ": %s\n\n", text)
}
