package logging

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/logdyhq/logdy-core/logdy"

	"cutwatch-worker-go/internal/config"
)

// logdyWriter forwards each log line to the embedded Logdy UI
type logdyWriter struct {
	ui logdy.Logdy
}

func (w *logdyWriter) Write(p []byte) (int, error) {
	if line := bytes.TrimRight(p, "\n"); len(line) > 0 {
		w.ui.LogString(string(line))
	}
	return len(p), nil
}

// StartLogdy starts the Logdy web UI and returns a writer to tee logs into, plus the UI URL
func StartLogdy(cfg *config.Config) (io.Writer, string, error) {
	if cfg.LogdyPort <= 0 {
		return nil, "", fmt.Errorf("invalid Logdy port %d", cfg.LogdyPort)
	}
	port := strconv.Itoa(cfg.LogdyPort)
	ui := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   cfg.LogdyHost,
		ServerPort: port,
	}, nil)

	return &logdyWriter{ui: ui}, fmt.Sprintf("http://%s:%s", cfg.LogdyHost, port), nil
}
