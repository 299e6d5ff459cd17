package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"platecam/internal/dto"
	"platecam/internal/model"
)

const clipColumns = `id, identifier, folder, frame_count, fps, started_at, ended_at, status, uploaded_path, created_at`

// ClipRepository implements repository.ClipRepository for SQLite.
type ClipRepository struct {
	db *DB
}

// NewClipRepository creates a new SQLite clip repository.
func NewClipRepository(db *DB) *ClipRepository {
	return &ClipRepository{db: db}
}

// Insert adds a new clip record to the database.
func (r *ClipRepository) Insert(c *model.Clip) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.EndedAt
	}
	result, err := r.db.Conn().Exec(`
		INSERT INTO clips (identifier, folder, frame_count, fps, started_at, ended_at, status, uploaded_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Identifier, c.Folder, c.FrameCount, c.FPS, c.StartedAt, c.EndedAt, string(c.Status), c.UploadedPath, createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert clip: %w", err)
	}

	return result.LastInsertId()
}

// UpdateStatus moves the newest not yet uploaded clip of a folder to status.
// An empty uploadedPath keeps the stored one. A folder without such a clip is ignored.
func (r *ClipRepository) UpdateStatus(folder string, status model.ClipStatus, uploadedPath string) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		UPDATE clips
		SET status = ?, uploaded_path = CASE WHEN ? <> '' THEN ? ELSE uploaded_path END
		WHERE id = (
			SELECT id FROM clips WHERE folder = ? AND status <> ? ORDER BY id DESC LIMIT 1
		)
	`, string(status), uploadedPath, uploadedPath, folder, string(model.ClipUploaded))
	if err != nil {
		return fmt.Errorf("failed to update clip status: %w", err)
	}
	return nil
}

// GetByID retrieves a clip by its ID.
func (r *ClipRepository) GetByID(id int64) (*model.Clip, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	c, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clip: %w", err)
	}
	return c, nil
}

// GetAll retrieves clips based on filter criteria, newest first.
func (r *ClipRepository) GetAll(filter *dto.ClipFilters) ([]model.Clip, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := clipWhere(filter)
	query := `SELECT ` + clipColumns + ` FROM clips WHERE 1=1` + where + ` ORDER BY started_at DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clips: %w", err)
	}
	defer rows.Close()

	var clips []model.Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clip: %w", err)
		}
		clips = append(clips, *c)
	}
	return clips, rows.Err()
}

// GetTotalCount returns the total count of clips matching the filter.
func (r *ClipRepository) GetTotalCount(filter *dto.ClipFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := clipWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM clips WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count clips: %w", err)
	}
	return count, nil
}

// DeleteAll removes all clip records.
func (r *ClipRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec("DELETE FROM clips"); err != nil {
		return fmt.Errorf("failed to delete all clips: %w", err)
	}
	return nil
}

func clipWhere(filter *dto.ClipFilters) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}
	query := ""
	args := []interface{}{}

	if filter.Identifier != "" {
		query += " AND identifier = ?"
		args = append(args, filter.Identifier)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.After.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.After)
	}
	if !filter.Before.IsZero() {
		query += " AND started_at <= ?"
		args = append(args, filter.Before)
	}
	return query, args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClip(s scanner) (*model.Clip, error) {
	var c model.Clip
	var status string
	err := s.Scan(&c.ID, &c.Identifier, &c.Folder, &c.FrameCount, &c.FPS, &c.StartedAt, &c.EndedAt, &status, &c.UploadedPath, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = model.ClipStatus(status)
	return &c, nil
}
