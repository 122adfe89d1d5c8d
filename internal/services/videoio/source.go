package videoio

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"cutwatch-worker-go/internal/models"
)

// MatFrame wraps a decoded OpenCV frame
type MatFrame struct {
	Mat gocv.Mat
}

// Close releases the underlying Mat
func (f *MatFrame) Close() error {
	return f.Mat.Close()
}

// AsMat extracts the Mat from a frame produced by this package
func AsMat(frame models.Frame) (*gocv.Mat, error) {
	mf, ok := frame.(*MatFrame)
	if !ok || mf == nil {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	return &mf.Mat, nil
}

// Source reads a video file frame by frame
type Source struct {
	path   string
	cap    *gocv.VideoCapture
	fps    float64
	width  int
	height int
}

// OpenSource opens a video file. It fails with ErrSourceUnreadable before any
// frame is read when the container cannot be opened.
func OpenSource(path string) (*Source, error) {
	cap, err := gocv.OpenVideoCaptureWithAPI(path, gocv.VideoCaptureFFmpeg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrSourceUnreadable, path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s", models.ErrSourceUnreadable, path)
	}

	fps := cap.Get(gocv.VideoCaptureFPS)
	width := int(cap.Get(gocv.VideoCaptureFrameWidth))
	height := int(cap.Get(gocv.VideoCaptureFrameHeight))
	if fps <= 0 {
		log.Warn().Str("path", path).Float64("fps", fps).Msg("Source reports no frame rate, assuming 30")
		fps = 30
	}

	log.Info().
		Str("path", path).
		Float64("fps", fps).
		Int("width", width).
		Int("height", height).
		Msg("Video source opened")

	return &Source{path: path, cap: cap, fps: fps, width: width, height: height}, nil
}

// Next decodes the next frame. It returns io.EOF at end of stream and
// ErrFrameDecode when the container yields an empty frame.
func (s *Source) Next() (models.Frame, error) {
	img := gocv.NewMat()
	if ok := s.cap.Read(&img); !ok {
		img.Close()
		return nil, io.EOF
	}
	if img.Empty() {
		img.Close()
		return nil, models.ErrFrameDecode
	}
	return &MatFrame{Mat: img}, nil
}

func (s *Source) FPS() float64 { return s.fps }

func (s *Source) Size() (int, int) { return s.width, s.height }

func (s *Source) Close() error {
	return s.cap.Close()
}
