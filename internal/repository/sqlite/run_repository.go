package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cutwatch-worker-go/internal/models"
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("run not found")

// RunRecord is the persisted summary of a finished run
type RunRecord struct {
	ID              string    `json:"run_id"`
	VideoName       string    `json:"video_name"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	FramesScanned   int       `json:"frames_scanned"`
	TotalDetections int       `json:"total_detections"`
	Shown           int       `json:"shown"`
	Truncated       bool      `json:"truncated"`
	OutputVideo     string    `json:"output_video,omitempty"`
	EvidenceDir     string    `json:"evidence_dir,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// RecordFromRun summarizes a run for storage
func RecordFromRun(run *models.VideoRun, status string, runErr error) RunRecord {
	rec := RunRecord{
		ID:              run.ID,
		VideoName:       run.VideoName,
		Status:          status,
		FramesScanned:   run.Ledger.FramesScanned,
		TotalDetections: run.Ledger.Len(),
		Shown:           run.Selection.Shown(),
		Truncated:       run.Selection.Truncated,
		OutputVideo:     run.OutputVideoPath,
		EvidenceDir:     run.EvidenceDir,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Insert(ctx context.Context, rec RunRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO runs (id, video_name, status, error, frames_scanned, total_detections,
			shown, truncated, output_video, evidence_dir, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.VideoName, rec.Status, rec.Error, rec.FramesScanned, rec.TotalDetections,
		rec.Shown, rec.Truncated, rec.OutputVideo, rec.EvidenceDir, rec.StartedAt.UTC(), rec.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*RunRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, video_name, status, error, frames_scanned, total_detections,
			shown, truncated, output_video, evidence_dir, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit runs, newest first
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, video_name, status, error, frames_scanned, total_detections,
			shown, truncated, output_video, evidence_dir, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	err := row.Scan(&rec.ID, &rec.VideoName, &rec.Status, &rec.Error, &rec.FramesScanned, &rec.TotalDetections,
		&rec.Shown, &rec.Truncated, &rec.OutputVideo, &rec.EvidenceDir, &rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
