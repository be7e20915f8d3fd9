// Package store persists acquisition jobs and their results in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"trailfetch/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateProcess inserts a new job row. A missing ID is generated, timestamps
// are set, and the row starts in the pending state unless one is provided.
func (s *Store) CreateProcess(ctx context.Context, p *models.Process) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.IsCompleted = p.Status.IsTerminal()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO process (
            id, status, status_details, is_completed, service_name, services,
            name, year, lang, full_audio_tracks, trailer_page, callback_url,
            callback_error, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		string(p.Status),
		p.StatusDetails,
		boolToInt(p.IsCompleted),
		p.ServiceName,
		p.Services,
		p.Name,
		p.Year,
		p.Lang,
		boolToInt(p.FullAudioTracks),
		p.TrailerPage,
		p.CallbackURL,
		p.CallbackError,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert process: %w", err)
	}
	return nil
}

// GetProcess loads a single job row by id.
func (s *Store) GetProcess(ctx context.Context, id string) (*models.Process, error) {
	row := s.db.QueryRowContext(ctx, selectProcess+` WHERE id = ?`, id)
	p, err := scanProcess(row)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProcessDetail loads a job row together with its trailers and subtitles.
func (s *Store) GetProcessDetail(ctx context.Context, id string) (*models.ProcessDetail, error) {
	p, err := s.GetProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	trailers, err := s.listTrailers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ProcessDetail{Process: *p, Trailers: trailers}, nil
}

// UpdateStatus transitions a job to a new status. Completion is derived from
// the status itself so the two columns can never disagree.
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.Status, details string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE process SET status = ?, status_details = ?, is_completed = ?, updated_at = ? WHERE id = ?`,
		string(status),
		details,
		boolToInt(status.IsTerminal()),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return ensureRow(res)
}

// SetTrailerPage records the page an adapter resolved for a job. The page is
// kept even when the rest of the pipeline later fails, so callers can retry
// against it directly.
func (s *Store) SetTrailerPage(ctx context.Context, id, page string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE process SET trailer_page = ?, updated_at = ? WHERE id = ?`,
		page,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set trailer page: %w", err)
	}
	return ensureRow(res)
}

// SetServiceName records which adapter produced the winning result.
func (s *Store) SetServiceName(ctx context.Context, id, service string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE process SET service_name = ?, updated_at = ? WHERE id = ?`,
		service,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set service name: %w", err)
	}
	return ensureRow(res)
}

// SetCallbackError stores the outcome of the last webhook delivery. A nil
// value clears a previously recorded failure.
func (s *Store) SetCallbackError(ctx context.Context, id string, callbackErr *string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE process SET callback_error = ?, updated_at = ? WHERE id = ?`,
		callbackErr,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set callback error: %w", err)
	}
	return ensureRow(res)
}

// InsertTrailer stores one uploaded trailer for a job and returns its id.
func (s *Store) InsertTrailer(ctx context.Context, processID string, t *models.Trailer) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.ProcessID = processID
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO trailers (id, process_id, url, thumbnail_url, title, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, processID, t.URL, t.ThumbnailURL, t.Title, formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert trailer: %w", err)
	}
	return nil
}

// InsertSubtitle stores one uploaded subtitle track for a trailer.
func (s *Store) InsertSubtitle(ctx context.Context, trailerID string, sub *models.Subtitle) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.TrailerID = trailerID
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO subtitles (id, trailer_id, language, url, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, trailerID, sub.Language, sub.URL, formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert subtitle: %w", err)
	}
	return nil
}

// ListIncomplete returns every job that has not reached a terminal state,
// oldest first. Used to requeue work after a restart.
func (s *Store) ListIncomplete(ctx context.Context) ([]*models.Process, error) {
	rows, err := s.db.QueryContext(ctx, selectProcess+` WHERE is_completed = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list incomplete: %w", err)
	}
	defer rows.Close()
	return scanProcesses(rows)
}

// CountIncomplete returns the number of jobs still in flight.
func (s *Store) CountIncomplete(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM process WHERE is_completed = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count incomplete: %w", err)
	}
	return n, nil
}

// ListFeed returns the most recently finished jobs that produced at least one
// trailer, newest first, with their trailers attached. page counts from 0.
func (s *Store) ListFeed(ctx context.Context, limit, page int) ([]*models.ProcessDetail, error) {
	if limit <= 0 {
		limit = 50
	}
	if page < 0 {
		page = 0
	}
	rows, err := s.db.QueryContext(
		ctx,
		selectProcess+` WHERE status = ? ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		string(models.StatusDone),
		limit,
		page*limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	defer rows.Close()

	procs, err := scanProcesses(rows)
	if err != nil {
		return nil, err
	}

	out := make([]*models.ProcessDetail, 0, len(procs))
	for _, p := range procs {
		trailers, err := s.listTrailers(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(trailers) == 0 {
			continue
		}
		out = append(out, &models.ProcessDetail{Process: *p, Trailers: trailers})
	}
	return out, nil
}

func (s *Store) listTrailers(ctx context.Context, processID string) ([]models.TrailerDetail, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, process_id, url, thumbnail_url, title, created_at, updated_at
         FROM trailers WHERE process_id = ? ORDER BY created_at ASC`,
		processID,
	)
	if err != nil {
		return nil, fmt.Errorf("list trailers: %w", err)
	}
	defer rows.Close()

	var out []models.TrailerDetail
	for rows.Next() {
		var t models.Trailer
		var created, updated string
		if err := rows.Scan(&t.ID, &t.ProcessID, &t.URL, &t.ThumbnailURL, &t.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan trailer: %w", err)
		}
		t.CreatedAt = parseTime(created)
		t.UpdatedAt = parseTime(updated)
		out = append(out, models.TrailerDetail{Trailer: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trailers: %w", err)
	}

	for i := range out {
		subs, err := s.listSubtitles(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Subtitles = subs
	}
	return out, nil
}

func (s *Store) listSubtitles(ctx context.Context, trailerID string) ([]models.Subtitle, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, trailer_id, language, url, created_at, updated_at
         FROM subtitles WHERE trailer_id = ? ORDER BY created_at ASC`,
		trailerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subtitles: %w", err)
	}
	defer rows.Close()

	var out []models.Subtitle
	for rows.Next() {
		var sub models.Subtitle
		var created, updated string
		if err := rows.Scan(&sub.ID, &sub.TrailerID, &sub.Language, &sub.URL, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan subtitle: %w", err)
		}
		sub.CreatedAt = parseTime(created)
		sub.UpdatedAt = parseTime(updated)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subtitles: %w", err)
	}
	return out, nil
}
