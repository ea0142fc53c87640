package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/airenas/meetscribe/internal/pkg/persistence"
	"github.com/airenas/meetscribe/internal/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordingCols = `id, original_filename, media_url, storage_path, file_size, content_type, email,
	transcript, transcript_with_speakers, duration, summary, action_items, decisions, visual_summary_url,
	status, processing_error, created, updated`

// DB provides operations with postgresql
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates DB instance
func NewDB(pool *pgxpool.Pool) (*DB, error) {
	if pool == nil {
		return nil, fmt.Errorf("no pool")
	}
	return &DB{pool: pool}, nil
}

// Insert inserts a new recording
func (db *DB) Insert(ctx context.Context, rec *persistence.Recording) error {
	ai, err := toJSON(rec.ActionItems)
	if err != nil {
		return err
	}
	dec, err := toJSON(rec.Decisions)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx, `INSERT INTO recordings(`+recordingCols+`)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13::jsonb, $14, $15, $16, $17, $18)`,
		rec.ID, rec.OriginalFilename, rec.MediaURL, rec.StoragePath, rec.FileSize, rec.ContentType, rec.Email,
		rec.Transcript, rec.TranscriptWithSpeakers, rec.Duration, rec.Summary, ai, dec, rec.VisualSummaryURL,
		rec.Status, rec.Error, rec.Created, rec.Updated)
	if err != nil {
		return fmt.Errorf("can't insert recording: %w", err)
	}
	return nil
}

// UpdateTranscription sets the transcription fields and status in one statement.
// Null values keep the stored ones. Analysis fields are not touched.
func (db *DB) UpdateTranscription(ctx context.Context, upd *persistence.TranscriptionUpdate, allowedFrom []string) (*persistence.Recording, error) {
	row := db.pool.QueryRow(ctx, `UPDATE recordings SET
	transcript = COALESCE($3, transcript),
	transcript_with_speakers = COALESCE($4, transcript_with_speakers),
	duration = COALESCE($5, duration),
	processing_error = $6,
	status = $2,
	updated = $7
	WHERE id = $1 AND status = ANY($8)
	RETURNING `+recordingCols, upd.ID, upd.Status,
		upd.Transcript, upd.TranscriptWithSpeakers, upd.Duration, upd.Error, upd.Updated, allowedFrom)
	return db.scanUpdated(ctx, row, upd.ID, upd.Status)
}

// UpdateAnalysis sets the analysis fields and status in one statement.
// Transcription fields are not touched.
func (db *DB) UpdateAnalysis(ctx context.Context, upd *persistence.AnalysisUpdate, allowedFrom []string) (*persistence.Recording, error) {
	ai, err := toJSON(upd.ActionItems)
	if err != nil {
		return nil, err
	}
	dec, err := toJSON(upd.Decisions)
	if err != nil {
		return nil, err
	}
	row := db.pool.QueryRow(ctx, `UPDATE recordings SET
	summary = $3,
	action_items = $4::jsonb,
	decisions = $5::jsonb,
	visual_summary_url = $6,
	processing_error = $7,
	status = $2,
	updated = $8
	WHERE id = $1 AND status = ANY($9)
	RETURNING `+recordingCols, upd.ID, upd.Status,
		upd.Summary, ai, dec, upd.VisualSummaryURL, upd.Error, upd.Updated, allowedFrom)
	return db.scanUpdated(ctx, row, upd.ID, upd.Status)
}

func (db *DB) scanUpdated(ctx context.Context, row pgx.Row, id, to string) (*persistence.Recording, error) {
	res, err := scanRecording(row)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("can't update recording: %w", err)
	}
	var current string
	err = db.pool.QueryRow(ctx, `SELECT status FROM recordings WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("can't load status: %w", err)
	}
	return nil, fmt.Errorf("%w: %s -> %s", utils.ErrWrongTransition, current, to)
}

// Load loads recording, returns nil if there is no such ID
func (db *DB) Load(ctx context.Context, id string) (*persistence.Recording, error) {
	res, err := scanRecording(db.pool.QueryRow(ctx, `SELECT `+recordingCols+` FROM recordings
		WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load recording: %w", err)
	}
	return res, nil
}

// List returns recordings newest first with the total count
func (db *DB) List(ctx context.Context, offset, limit int) ([]*persistence.Recording, int, error) {
	var total int
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM recordings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("can't count recordings: %w", err)
	}
	rows, err := db.pool.Query(ctx, `SELECT `+recordingCols+` FROM recordings
		ORDER BY created DESC, id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("can't list recordings: %w", err)
	}
	defer rows.Close()
	res := []*persistence.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("can't retrieve recording: %w", err)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("can't list recordings: %w", err)
	}
	return res, total, nil
}

// Delete removes recording row, returns false if nothing was deleted
func (db *DB) Delete(ctx context.Context, id string) (bool, error) {
	cmd, err := db.pool.Exec(ctx, `DELETE FROM recordings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("can't delete recording: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

// LockEmailTable marks the email as being sent. Fails if it is sent or is being sent already
func (db *DB) LockEmailTable(ctx context.Context, id, key string) error {
	cmd, err := db.pool.Exec(ctx, `INSERT INTO email_lock(id, key, value) VALUES($1, $2, 1)
	ON CONFLICT (id, key) DO UPDATE SET value = 1 WHERE email_lock.value = 0`, id, key)
	if err != nil {
		return fmt.Errorf("can't lock email: %w", err)
	}
	if cmd.RowsAffected() != 1 {
		return fmt.Errorf("email %s(%s) already locked", id, key)
	}
	return nil
}

// UnLockEmailTable sets the final lock value, 0 allows a retry
func (db *DB) UnLockEmailTable(ctx context.Context, id, key string, value *int) error {
	v := 0
	if value != nil {
		v = *value
	}
	_, err := db.pool.Exec(ctx, `UPDATE email_lock SET value = $3 WHERE id = $1 AND key = $2`, id, key, v)
	if err != nil {
		return fmt.Errorf("can't unlock email: %w", err)
	}
	return nil
}

// Live returns no error if db is reachable and initialized
func (db *DB) Live(ctx context.Context) error {
	var exists bool
	if err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM pg_tables WHERE tablename = 'recordings')`).Scan(&exists); err != nil {
		return fmt.Errorf("can't check table: %w", err)
	}
	if !exists {
		return fmt.Errorf("no migration done")
	}
	return nil
}

func scanRecording(row pgx.Row) (*persistence.Recording, error) {
	var res persistence.Recording
	var ai, dec []byte
	err := row.Scan(&res.ID, &res.OriginalFilename, &res.MediaURL, &res.StoragePath, &res.FileSize,
		&res.ContentType, &res.Email, &res.Transcript, &res.TranscriptWithSpeakers, &res.Duration,
		&res.Summary, &ai, &dec, &res.VisualSummaryURL, &res.Status, &res.Error, &res.Created, &res.Updated)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(ai, &res.ActionItems); err != nil {
		return nil, fmt.Errorf("can't decode action items: %w", err)
	}
	if err := fromJSON(dec, &res.Decisions); err != nil {
		return nil, fmt.Errorf("can't decode decisions: %w", err)
	}
	return &res, nil
}

// toJSON returns nil for nil slices so that the column stays NULL
func toJSON[T any](v []T) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("can't marshal: %w", err)
	}
	res := string(b)
	return &res, nil
}

func fromJSON[T any](b []byte, res *[]T) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, res)
}
