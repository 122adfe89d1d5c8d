package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cutwatch-worker-go/internal/models"
)

// RegistrationRepository persists handle to chat id mappings
type RegistrationRepository struct {
	db *DB
}

func NewRegistrationRepository(db *DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Get returns the entry for handle or models.ErrNotRegistered
func (r *RegistrationRepository) Get(ctx context.Context, handle string) (*models.RegistrationEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var entry models.RegistrationEntry
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT handle, channel_identity, registered_at
		FROM registrations WHERE handle = ?
	`, handle).Scan(&entry.Handle, &entry.ChannelIdentity, &entry.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query registration: %w", err)
	}
	return &entry, nil
}

// Upsert stores entry. An existing handle gets the new identity but keeps
// its original registered_at.
func (r *RegistrationRepository) Upsert(ctx context.Context, entry models.RegistrationEntry) error {
	r.db.Lock()
	defer r.db.Unlock()

	now := time.Now().UTC()
	registeredAt := entry.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = now
	}

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO registrations (handle, channel_identity, registered_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET
			channel_identity = excluded.channel_identity,
			updated_at = excluded.updated_at
	`, entry.Handle, entry.ChannelIdentity, registeredAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to upsert registration: %w", err)
	}
	return nil
}

// List returns every registration ordered by handle
func (r *RegistrationRepository) List(ctx context.Context) ([]models.RegistrationEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT handle, channel_identity, registered_at
		FROM registrations ORDER BY handle
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	var entries []models.RegistrationEntry
	for rows.Next() {
		var entry models.RegistrationEntry
		if err := rows.Scan(&entry.Handle, &entry.ChannelIdentity, &entry.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
