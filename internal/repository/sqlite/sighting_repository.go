package sqlite

import (
	"fmt"

	"platecam/internal/model"
)

// SightingRepository implements repository.SightingRepository for SQLite.
type SightingRepository struct {
	db *DB
}

// NewSightingRepository creates a new SQLite sighting repository.
func NewSightingRepository(db *DB) *SightingRepository {
	return &SightingRepository{db: db}
}

// InsertBatch adds multiple sightings in a single transaction.
func (r *SightingRepository) InsertBatch(sightings []model.Sighting) error {
	if len(sightings) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO sightings (identifier, raw_text, frame_id, seen_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range sightings {
		if _, err := stmt.Exec(s.Identifier, s.RawText, int64(s.FrameID), s.SeenAt); err != nil {
			return fmt.Errorf("failed to insert sighting: %w", err)
		}
	}

	return tx.Commit()
}

// GetByIdentifier retrieves all sightings folded into an identifier, oldest first.
func (r *SightingRepository) GetByIdentifier(identifier string) ([]model.Sighting, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, identifier, raw_text, frame_id, seen_at
		FROM sightings WHERE identifier = ? ORDER BY id
	`, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []model.Sighting
	for rows.Next() {
		var s model.Sighting
		var frameID int64
		if err := rows.Scan(&s.ID, &s.Identifier, &s.RawText, &frameID, &s.SeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		s.FrameID = uint64(frameID)
		sightings = append(sightings, s)
	}
	return sightings, rows.Err()
}

// GetAllIdentifiers returns all unique identifiers that have been sighted.
func (r *SightingRepository) GetAllIdentifiers() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT DISTINCT identifier FROM sightings ORDER BY identifier
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query identifiers: %w", err)
	}
	defer rows.Close()

	var identifiers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		identifiers = append(identifiers, id)
	}
	return identifiers, rows.Err()
}
