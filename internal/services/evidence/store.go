// Package evidence keeps the annotated frames of a run on disk.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cutwatch-worker-go/internal/models"
)

// Encoder turns a frame into image bytes
type Encoder func(models.Frame) ([]byte, error)

// Store is the evidence directory of a single run. Each frame index is
// written at most once; there is no eviction.
type Store struct {
	runID  string
	dir    string
	encode Encoder

	mu    sync.Mutex
	refs  map[int]models.EvidenceRef
	files []string
}

// NewRunID returns run_<YYYYmmdd-HHMMSS>_<8 hex chars>
func NewRunID(now time.Time) string {
	return fmt.Sprintf("run_%s_%s", now.Format("20060102-150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NewRunStore creates baseDir/runID
func NewRunStore(baseDir, runID string, encode Encoder) (*Store, error) {
	if encode == nil {
		return nil, fmt.Errorf("evidence encoder is required")
	}
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory: %w", err)
	}
	return &Store{
		runID:  runID,
		dir:    dir,
		encode: encode,
		refs:   make(map[int]models.EvidenceRef),
	}, nil
}

// FileName is the artifact name for a frame index
func FileName(frameIndex int) string {
	return fmt.Sprintf("frame_%06d.jpg", frameIndex)
}

// Put stores the frame for frameIndex. A second put for the same index
// returns the first artifact without touching the disk.
func (s *Store) Put(frameIndex int, frame models.Frame) (models.EvidenceRef, error) {
	if frameIndex < 0 {
		return "", fmt.Errorf("%w: negative frame index %d", models.ErrEvidenceWriteFailed, frameIndex)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.refs[frameIndex]; ok {
		return ref, nil
	}

	data, err := s.encode(frame)
	if err != nil {
		return "", fmt.Errorf("%w: encode frame %d: %v", models.ErrEvidenceWriteFailed, frameIndex, err)
	}

	name := FileName(frameIndex)
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrEvidenceWriteFailed, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %v", models.ErrEvidenceWriteFailed, err)
	}

	ref := models.EvidenceRef(name)
	s.refs[frameIndex] = ref
	s.files = append(s.files, name)
	return ref, nil
}

// PathOf resolves a ref to a path inside the run directory. Unknown refs
// resolve to "".
func (s *Store) PathOf(ref models.EvidenceRef) string {
	if ref == "" {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.files {
		if name == string(ref) {
			return filepath.Join(s.dir, name)
		}
	}
	return ""
}

// Files lists the stored artifact names, sorted
func (s *Store) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.files...)
	sort.Strings(out)
	return out
}

func (s *Store) Dir() string   { return s.dir }
func (s *Store) RunID() string { return s.runID }

// ResolveFile maps a run id and file name from an untrusted caller to a path
// under baseDir, rejecting anything that would escape it.
func ResolveFile(baseDir, runID, name string) (string, error) {
	for _, part := range []string{runID, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid path component %q", part)
		}
	}
	return filepath.Join(baseDir, runID, name), nil
}
