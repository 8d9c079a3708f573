package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Recording is a captured session of device frames.
type Recording struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Provider   string     `json:"provider"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	FrameCount int        `json:"frame_count"`
}

// Active reports whether frames are still being appended.
func (r *Recording) Active() bool { return r.EndedAt == nil }

// Frame is one stored device frame. Payload is the JSON encoding of the
// frame as produced by the device package.
type Frame struct {
	RecordingID string          `json:"recording_id"`
	Seq         int             `json:"seq"`
	Time        time.Time       `json:"time"`
	Payload     json.RawMessage `json:"payload"`
}

// RecordingRepository reads and writes recordings and their frames.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

// Create inserts a new recording. StartedAt defaults to now.
func (r *RecordingRepository) Create(rec *Recording) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	rec.FrameCount = 0
	_, err := r.db.Exec(
		`INSERT INTO recordings (id, name, provider, started_at, ended_at, frame_count)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		rec.ID, rec.Name, rec.Provider, rec.StartedAt.UTC(), nullTime(rec.EndedAt),
	)
	return err
}

// GetByID retrieves a recording.
func (r *RecordingRepository) GetByID(id string) (*Recording, error) {
	row := r.db.QueryRow(
		`SELECT id, name, provider, started_at, ended_at, frame_count
		 FROM recordings WHERE id = ?`, id,
	)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns all recordings, newest first.
func (r *RecordingRepository) List() ([]*Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, name, provider, started_at, ended_at, frame_count
		 FROM recordings ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Rename changes a recording's display name.
func (r *RecordingRepository) Rename(id, name string) error {
	result, err := r.db.Exec(`UPDATE recordings SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Finish stamps the end time of a recording.
func (r *RecordingRepository) Finish(id string, endedAt time.Time) error {
	result, err := r.db.Exec(`UPDATE recordings SET ended_at = ? WHERE id = ?`, endedAt.UTC(), id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a recording and its frames.
func (r *RecordingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// AppendFrames stores frames in one transaction and bumps the frame count.
func (r *RecordingRepository) AppendFrames(id string, frames []Frame) error {
	if len(frames) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO recording_frames (recording_id, seq, time_ns, payload) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.Exec(id, f.Seq, f.Time.UnixNano(), string(f.Payload)); err != nil {
			return err
		}
	}

	result, err := tx.Exec(
		`UPDATE recordings SET frame_count = frame_count + ? WHERE id = ?`, len(frames), id,
	)
	if err != nil {
		return err
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	return tx.Commit()
}

// Frames returns every frame of a recording in sequence order.
func (r *RecordingRepository) Frames(id string) ([]Frame, error) {
	rows, err := r.db.Query(
		`SELECT recording_id, seq, time_ns, payload
		 FROM recording_frames WHERE recording_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var ns int64
		var payload string
		if err := rows.Scan(&f.RecordingID, &f.Seq, &ns, &payload); err != nil {
			return nil, err
		}
		f.Time = time.Unix(0, ns)
		f.Payload = json.RawMessage(payload)
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (*Recording, error) {
	rec := &Recording{}
	var ended sql.NullTime
	if err := s.Scan(&rec.ID, &rec.Name, &rec.Provider, &rec.StartedAt, &ended, &rec.FrameCount); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		rec.EndedAt = &t
	}
	return rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
