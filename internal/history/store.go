// Package history keeps a record of every outline a session produced and
// what came of its generation.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/pagegen/internal/database"
	"github.com/lehigh-university-libraries/pagegen/internal/outline"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusPartial    Status = "partial"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusGenerating, StatusCompleted, StatusPartial:
		return true
	}
	return false
}

// StatusFor derives a record status from the number of generated images.
func StatusFor(expected, generated int) Status {
	switch {
	case generated <= 0:
		return StatusDraft
	case generated >= expected:
		return StatusCompleted
	default:
		return StatusPartial
	}
}

type Record struct {
	ID        string          `json:"id" yaml:"id"`
	Title     string          `json:"title" yaml:"title"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
	Outline   outline.Outline `json:"outline" yaml:"outline"`
	TaskID    string          `json:"task_id" yaml:"task_id"`
	Generated []string        `json:"generated" yaml:"generated"`
	Status    Status          `json:"status" yaml:"status"`
	Thumbnail string          `json:"thumbnail" yaml:"thumbnail"`
}

func (r Record) PageCount() int { return len(r.Outline.Pages) }

// Update lists the fields to change. Nil fields are left alone.
type Update struct {
	Title     *string
	Outline   *outline.Outline
	TaskID    *string
	Generated []string
	Status    *Status
	Thumbnail *string
}

type ListPage struct {
	Records    []Record `json:"records" yaml:"records"`
	Total      int      `json:"total" yaml:"total"`
	Page       int      `json:"page" yaml:"page"`
	PageSize   int      `json:"page_size" yaml:"page_size"`
	TotalPages int      `json:"total_pages" yaml:"total_pages"`
}

type Statistics struct {
	Total    int            `json:"total" yaml:"total"`
	ByStatus map[Status]int `json:"by_status" yaml:"by_status"`
}

const DefaultPageSize = 20

const schema = `CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	outline TEXT NOT NULL,
	page_count INTEGER NOT NULL DEFAULT 0,
	task_id TEXT NOT NULL DEFAULT '',
	generated TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'draft',
	thumbnail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_at);`

const columns = `id, title, created_at, updated_at, outline, task_id, generated, status, thumbnail`

type Store struct {
	DB  *sql.DB
	now func() time.Time
}

func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create history table: %w", err)
	}
	return &Store{DB: db, now: database.Now}, nil
}

// Create inserts a draft record for topic and returns its id.
func (s *Store) Create(ctx context.Context, topic string, o outline.Outline, taskID string) (string, error) {
	id := uuid.NewString()
	now := formatTime(s.now())
	outlineJSON, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("encode outline: %w", err)
	}

	query := `INSERT INTO history (id, title, created_at, updated_at, outline, page_count, task_id, generated, status, thumbnail)
		VALUES (?, ?, ?, ?, ?, ?, ?, '[]', ?, '')`
	_, err = s.DB.ExecContext(ctx, query, id, topic, now, now, string(outlineJSON), len(o.Pages), taskID, string(StatusDraft))
	if err != nil {
		return "", fmt.Errorf("insert history record: %w", err)
	}
	slog.Debug("Created history record", "id", id, "pages", len(o.Pages))
	return id, nil
}

// Get returns the record with the given id, or nil when there is none.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+columns+` FROM history WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history record %s: %w", id, err)
	}
	return rec, nil
}

// Update applies u to the record and reports whether it exists.
func (s *Store) Update(ctx context.Context, id string, u Update) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(s.now())}

	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Outline != nil {
		data, err := json.Marshal(u.Outline)
		if err != nil {
			return false, fmt.Errorf("encode outline: %w", err)
		}
		sets = append(sets, "outline = ?", "page_count = ?")
		args = append(args, string(data), len(u.Outline.Pages))
	}
	if u.TaskID != nil {
		sets = append(sets, "task_id = ?")
		args = append(args, *u.TaskID)
	}
	if u.Generated != nil {
		data, err := json.Marshal(u.Generated)
		if err != nil {
			return false, fmt.Errorf("encode generated: %w", err)
		}
		sets = append(sets, "generated = ?")
		args = append(args, string(data))
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return false, fmt.Errorf("unknown history status %q", *u.Status)
		}
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.Thumbnail != nil {
		sets = append(sets, "thumbnail = ?")
		args = append(args, *u.Thumbnail)
	}

	args = append(args, id)
	res, err := s.DB.ExecContext(ctx, `UPDATE history SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("update history record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the record and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete history record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns one page of records, newest first. An empty status matches
// every record.
func (s *Store) List(ctx context.Context, page, pageSize int, status Status) (ListPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	where := ""
	var args []any
	if status != "" {
		where = ` WHERE status = ?`
		args = append(args, string(status))
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`+where, args...).Scan(&total); err != nil {
		return ListPage{}, fmt.Errorf("count history: %w", err)
	}

	query := `SELECT ` + columns + ` FROM history` + where + ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	records, err := s.query(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return ListPage{}, err
	}

	return ListPage{
		Records:    records,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// All returns every record, newest first.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `SELECT `+columns+` FROM history ORDER BY created_at DESC, rowid DESC`)
}

// Search returns records whose title contains keyword, ignoring case.
func (s *Store) Search(ctx context.Context, keyword string) ([]Record, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(keyword)) + "%"
	query := `SELECT ` + columns + ` FROM history WHERE lower(title) LIKE ? ESCAPE '\' ORDER BY created_at DESC, rowid DESC`
	return s.query(ctx, query, pattern)
}

func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM history GROUP BY status`)
	if err != nil {
		return Statistics{}, fmt.Errorf("history statistics: %w", err)
	}
	defer rows.Close()

	stats := Statistics{ByStatus: make(map[Status]int)}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Statistics{}, err
		}
		stats.ByStatus[Status(status)] = n
		stats.Total += n
	}
	return stats, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                    Record
		created, updated       string
		outlineJSON, generated string
		status                 string
	)
	err := row.Scan(&rec.ID, &rec.Title, &created, &updated, &outlineJSON, &rec.TaskID, &generated, &status, &rec.Thumbnail)
	if err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	if rec.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(outlineJSON), &rec.Outline); err != nil {
		return nil, fmt.Errorf("decode outline: %w", err)
	}
	if rec.Outline.Pages == nil {
		rec.Outline.Pages = []outline.Page{}
	}
	if err := json.Unmarshal([]byte(generated), &rec.Generated); err != nil {
		return nil, fmt.Errorf("decode generated: %w", err)
	}
	if rec.Generated == nil {
		rec.Generated = []string{}
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
