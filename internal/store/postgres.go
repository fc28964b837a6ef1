package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/SignDesk/internal/database"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// PostgresStore wraps all SQL for the postgres backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and makes sure the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewPostgresStore(pool), nil
}

// NewPostgresStore uses an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) List(ctx context.Context) ([]*model.Document, error) {
	rows, err := p.pool.Query(ctx, `SELECT body FROM documents ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []*model.Document{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(string(body))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*model.Document, error) {
	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT body FROM documents WHERE id=$1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return decodeDocument(string(body))
}

func (p *PostgresStore) Save(ctx context.Context, doc *model.Document) error {
	if doc == nil {
		return errNilDocument
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var prev time.Time
	err = tx.QueryRow(ctx, `SELECT updated_at FROM documents WHERE id=$1 FOR UPDATE`, doc.ID).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup document: %w", err)
	}
	if err := prepareSave(doc, prev.UTC()); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, title, status, body, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Title, string(doc.Status), body, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) SetStatus(ctx context.Context, id string, status model.Status) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var body []byte
	err = tx.QueryRow(ctx, `SELECT body FROM documents WHERE id=$1 FOR UPDATE`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup document: %w", err)
	}
	doc, err := decodeDocument(string(body))
	if err != nil {
		return err
	}
	doc.Status = status
	doc.Touch(clock())
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = tx.Exec(ctx, `UPDATE documents SET status=$1, body=$2, updated_at=$3 WHERE id=$4`,
		string(status), raw, doc.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
