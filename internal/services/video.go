package services

import (
	"cutwatch-worker-go/internal/services/evidence"
	"cutwatch-worker-go/internal/services/pipeline"
	"cutwatch-worker-go/internal/services/scanner"
	"cutwatch-worker-go/internal/services/videoio"
)

// gocvBackend plugs the OpenCV video layer into the pipeline
type gocvBackend struct {
	annotator *videoio.Annotator
	encoder   evidence.Encoder
}

func newGocvBackend(quality int) *gocvBackend {
	return &gocvBackend{
		annotator: videoio.NewAnnotator(),
		encoder:   videoio.JPEGEncoder(quality),
	}
}

func (b *gocvBackend) OpenSource(path string) (pipeline.Source, error) {
	return videoio.OpenSource(path)
}

func (b *gocvBackend) OpenSink(path string, fps float64, width, height int) (pipeline.Sink, error) {
	return videoio.OpenSink(path, fps, width, height)
}

func (b *gocvBackend) Annotator() scanner.Annotator { return b.annotator }
func (b *gocvBackend) Encoder() evidence.Encoder    { return b.encoder }
