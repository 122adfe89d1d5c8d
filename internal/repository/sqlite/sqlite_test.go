package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cutwatch-worker-go/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRegistrationGetMissing(t *testing.T) {
	repo := NewRegistrationRepository(newTestDB(t))

	_, err := repo.Get(context.Background(), "alice")
	if !errors.Is(err, models.ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestRegistrationUpsertKeepsFirstRegisteredAt(t *testing.T) {
	repo := NewRegistrationRepository(newTestDB(t))
	ctx := context.Background()
	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := repo.Upsert(ctx, models.RegistrationEntry{Handle: "alice", ChannelIdentity: "111", RegisteredAt: first}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Upsert(ctx, models.RegistrationEntry{Handle: "alice", ChannelIdentity: "222", RegisteredAt: first.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	entry, err := repo.Get(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if entry.ChannelIdentity != "222" {
		t.Errorf("identity = %s, expected last write", entry.ChannelIdentity)
	}
	if !entry.RegisteredAt.Equal(first) {
		t.Errorf("registered_at = %v, expected %v", entry.RegisteredAt, first)
	}

	entries, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected a single entry per handle, got %d", len(entries))
	}
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"run_a", "run_b"} {
		rec := RunRecord{
			ID:              id,
			VideoName:       "hall.mp4",
			Status:          "completed",
			FramesScanned:   300,
			TotalDetections: 25,
			Shown:           10,
			Truncated:       true,
			StartedAt:       start.Add(time.Duration(i) * time.Minute),
			FinishedAt:      start.Add(time.Duration(i)*time.Minute + 30*time.Second),
		}
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := repo.GetByID(ctx, "run_a")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Truncated || rec.TotalDetections != 25 || !rec.StartedAt.Equal(start) {
		t.Errorf("unexpected record %+v", rec)
	}

	recent, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].ID != "run_b" {
		t.Errorf("expected newest first, got %+v", recent)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRecordFromRun(t *testing.T) {
	run := &models.VideoRun{
		ID:        "run_x",
		VideoName: "v.mp4",
		Ledger:    models.DetectionLedger{FramesScanned: 9, Detections: make([]models.Detection, 3)},
		Selection: models.AlertSelection{Items: make([]models.Detection, 3), TotalCount: 3},
	}
	rec := RecordFromRun(run, "failed", errors.New("boom"))
	if rec.TotalDetections != 3 || rec.Shown != 3 || rec.Error != "boom" || rec.Status != "failed" {
		t.Errorf("unexpected record %+v", rec)
	}
}
