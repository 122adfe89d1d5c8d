// Package preview streams the annotated frames of in-progress runs as MJPEG.
package preview

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cutwatch-worker-go/internal/models"
)

// Encoder turns a frame into JPEG bytes
type Encoder func(models.Frame) ([]byte, error)

type runState struct {
	latest  []byte
	frames  int
	viewers map[chan struct{}]struct{}
	done    chan struct{}
}

type Publisher struct {
	encode    Encoder
	everyN    int
	mu        sync.RWMutex
	runs      map[string]*runState
	keepAlive time.Duration
}

// NewPublisher encodes at most one of every everyN frames, and only while a
// run has viewers
func NewPublisher(encode Encoder, everyN int) *Publisher {
	if everyN < 1 {
		everyN = 1
	}
	return &Publisher{
		encode:    encode,
		everyN:    everyN,
		runs:      make(map[string]*runState),
		keepAlive: 2 * time.Second,
	}
}

// Start makes a run visible to viewers and returns the sink feeding it
func (p *Publisher) Start(runID string) *RunSink {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.runs[runID]; !ok {
		p.runs[runID] = &runState{
			viewers: make(map[chan struct{}]struct{}),
			done:    make(chan struct{}),
		}
	}
	return &RunSink{publisher: p, runID: runID}
}

// Finish ends every stream of the run
func (p *Publisher) Finish(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.runs[runID]; ok {
		close(st.done)
		delete(p.runs, runID)
	}
}

// Active lists runs that can be previewed
func (p *Publisher) Active() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Publisher) publish(runID string, frame models.Frame) error {
	p.mu.Lock()
	st, ok := p.runs[runID]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	st.frames++
	wanted := len(st.viewers) > 0 && (st.frames-1)%p.everyN == 0
	p.mu.Unlock()
	if !wanted {
		return nil
	}

	jpeg, err := p.encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode preview frame: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok = p.runs[runID]; !ok {
		return nil
	}
	st.latest = jpeg
	for ch := range st.viewers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (p *Publisher) subscribe(runID string) (chan struct{}, <-chan struct{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.runs[runID]
	if !ok {
		return nil, nil, false
	}
	ch := make(chan struct{}, 1)
	st.viewers[ch] = struct{}{}
	return ch, st.done, true
}

func (p *Publisher) unsubscribe(runID string, ch chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.runs[runID]; ok {
		delete(st.viewers, ch)
	}
}

func (p *Publisher) latest(runID string) []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if st, ok := p.runs[runID]; ok {
		return st.latest
	}
	return nil
}

// StreamMJPEGHTTP serves multipart/x-mixed-replace until the run finishes or
// the client goes away. Unknown runs get a 404.
func (p *Publisher) StreamMJPEGHTTP(w http.ResponseWriter, r *http.Request, runID string) {
	notify, done, ok := p.subscribe(runID)
	if !ok {
		http.Error(w, "run not in progress", http.StatusNotFound)
		return
	}
	defer p.unsubscribe(runID, notify)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	boundary := "frame"
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writePart := func(jpeg []byte) bool {
		if len(jpeg) == 0 {
			return true
		}
		if _, err := io.WriteString(w, "--"+boundary+"\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(jpeg))); err != nil {
			return false
		}
		if _, err := w.Write(jpeg); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writePart(p.latest(runID)) {
		return
	}

	keepaliveTicker := time.NewTicker(p.keepAlive)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			log.Debug().Str("run_id", runID).Msg("Preview stream ended with run")
			return
		case <-notify:
			if !writePart(p.latest(runID)) {
				return
			}
		case <-keepaliveTicker.C:
			if !writePart(p.latest(runID)) {
				return
			}
		}
	}
}

// RunSink is the scanner sink of one run
type RunSink struct {
	publisher *Publisher
	runID     string
}

func (s *RunSink) Write(frame models.Frame) error {
	return s.publisher.publish(s.runID, frame)
}

func (p *Publisher) viewerCount(runID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if st, ok := p.runs[runID]; ok {
		return len(st.viewers)
	}
	return 0
}
