package videoio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"cutwatch-worker-go/internal/models"
)

const outputCodec = "mp4v"

// Sink writes frames into an mp4 container at the source resolution and rate
type Sink struct {
	path   string
	writer *gocv.VideoWriter
	frames int
}

// OpenSink creates the output video. Parent directories are created as needed.
func OpenSink(path string, fps float64, width, height int) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	writer, err := gocv.VideoWriterFile(path, outputCodec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open video writer: %w", err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("video writer not opened for %s", path)
	}
	return &Sink{path: path, writer: writer}, nil
}

func (s *Sink) Write(frame models.Frame) error {
	mat, err := AsMat(frame)
	if err != nil {
		return err
	}
	if err := s.writer.Write(*mat); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", s.frames, err)
	}
	s.frames++
	return nil
}

func (s *Sink) Path() string { return s.path }

func (s *Sink) Close() error {
	log.Debug().Str("path", s.path).Int("frames", s.frames).Msg("Closing video writer")
	return s.writer.Close()
}
