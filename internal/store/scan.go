package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trailfetch/models"
)

const selectProcess = `SELECT
    id, status, status_details, is_completed, service_name, services,
    name, year, lang, full_audio_tracks, trailer_page, callback_url,
    callback_error, created_at, updated_at
FROM process`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcess(row rowScanner) (*models.Process, error) {
	var p models.Process
	var status string
	var isCompleted, fullAudio int
	var created, updated string

	err := row.Scan(
		&p.ID,
		&status,
		&p.StatusDetails,
		&isCompleted,
		&p.ServiceName,
		&p.Services,
		&p.Name,
		&p.Year,
		&p.Lang,
		&fullAudio,
		&p.TrailerPage,
		&p.CallbackURL,
		&p.CallbackError,
		&created,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan process: %w", err)
	}

	p.Status = models.Status(status)
	p.IsCompleted = isCompleted != 0
	p.FullAudioTracks = fullAudio != 0
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func scanProcesses(rows *sql.Rows) ([]*models.Process, error) {
	var out []*models.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processes: %w", err)
	}
	return out, nil
}

func ensureRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
