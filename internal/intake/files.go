package intake

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// ErrNotFound is returned when a file id is unknown.
var ErrNotFound = errors.New("file not found")

// Files persists intake file records and their lifecycle.
type Files interface {
	Create(ctx context.Context, rec *model.FileRecord) error
	Get(ctx context.Context, id string) (*model.FileRecord, error)
	List(ctx context.Context) ([]*model.FileRecord, error)
	MarkStatus(ctx context.Context, id string, status model.FileStatus) error
	MarkExtracted(ctx context.Context, id, content string) error
	MarkCompleted(ctx context.Context, id, analysis string) error
	MarkFailed(ctx context.Context, id, msg string) error
}

// MemoryFiles keeps records in process memory.
type MemoryFiles struct {
	mu    sync.RWMutex
	files map[string]*model.FileRecord
	now   func() time.Time
}

func NewMemoryFiles() *MemoryFiles {
	return &MemoryFiles{files: make(map[string]*model.FileRecord), now: time.Now}
}

func (m *MemoryFiles) Create(_ context.Context, rec *model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	cp := *rec
	m.files[rec.ID] = &cp
	return nil
}

func (m *MemoryFiles) Get(_ context.Context, id string) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns the newest uploads first.
func (m *MemoryFiles) List(_ context.Context) ([]*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.FileRecord, 0, len(m.files))
	for _, rec := range m.files {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryFiles) update(id string, fn func(*model.FileRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[id]
	if !ok {
		return ErrNotFound
	}
	fn(rec)
	rec.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryFiles) MarkStatus(_ context.Context, id string, status model.FileStatus) error {
	return m.update(id, func(r *model.FileRecord) {
		r.Status = status
		r.Message = ""
	})
}

func (m *MemoryFiles) MarkExtracted(_ context.Context, id, content string) error {
	return m.update(id, func(r *model.FileRecord) {
		r.Status = model.FileProcessing
		r.Content = content
		r.Message = ""
	})
}

func (m *MemoryFiles) MarkCompleted(_ context.Context, id, analysis string) error {
	return m.update(id, func(r *model.FileRecord) {
		r.Status = model.FileCompleted
		r.Analysis = analysis
		r.Message = ""
	})
}

func (m *MemoryFiles) MarkFailed(_ context.Context, id, msg string) error {
	return m.update(id, func(r *model.FileRecord) {
		r.Status = model.FileError
		r.Message = msg
	})
}

// PostgresFiles stores records in the intake_files table so the API and the
// asynq worker see the same state.
type PostgresFiles struct {
	pool *pgxpool.Pool
}

func NewPostgresFiles(pool *pgxpool.Pool) *PostgresFiles {
	return &PostgresFiles{pool: pool}
}

func (p *PostgresFiles) Create(ctx context.Context, rec *model.FileRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	_, err := p.pool.Exec(ctx, `
		INSERT INTO intake_files (id, name, size, content_type, kind, object_key, status, content, analysis, message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, rec.ID, rec.Name, rec.Size, rec.ContentType, string(rec.Kind), rec.ObjectKey, string(rec.Status),
		rec.Content, rec.Analysis, rec.Message, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert intake file: %w", err)
	}
	return nil
}

const fileColumns = `id, name, size, content_type, kind, object_key, status, content, analysis, message, created_at, updated_at`

func scanFile(row pgx.Row) (*model.FileRecord, error) {
	var (
		rec          model.FileRecord
		kind, status string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Size, &rec.ContentType, &kind, &rec.ObjectKey, &status,
		&rec.Content, &rec.Analysis, &rec.Message, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Kind = model.FileKind(kind)
	rec.Status = model.FileStatus(status)
	return &rec, nil
}

func (p *PostgresFiles) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	rec, err := scanFile(p.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM intake_files WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select intake file: %w", err)
	}
	return rec, nil
}

func (p *PostgresFiles) List(ctx context.Context) ([]*model.FileRecord, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+fileColumns+` FROM intake_files ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list intake files: %w", err)
	}
	defer rows.Close()
	var out []*model.FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intake file: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *PostgresFiles) MarkStatus(ctx context.Context, id string, status model.FileStatus) error {
	return p.update(ctx, id, status, nil, nil, "")
}

func (p *PostgresFiles) MarkExtracted(ctx context.Context, id, content string) error {
	return p.update(ctx, id, model.FileProcessing, &content, nil, "")
}

func (p *PostgresFiles) MarkCompleted(ctx context.Context, id, analysis string) error {
	return p.update(ctx, id, model.FileCompleted, nil, &analysis, "")
}

func (p *PostgresFiles) MarkFailed(ctx context.Context, id, msg string) error {
	return p.update(ctx, id, model.FileError, nil, nil, msg)
}

func (p *PostgresFiles) update(ctx context.Context, id string, status model.FileStatus, content, analysis *string, msg string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE intake_files
		SET status=$1,
			content = COALESCE($2, content),
			analysis = COALESCE($3, analysis),
			message = $4,
			updated_at = $5
		WHERE id=$6
	`, string(status), content, analysis, msg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update intake file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
