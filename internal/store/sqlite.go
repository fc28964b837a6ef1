package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// SQLiteStore keeps one row per record. The position column carries list
// order: inserts take min(position)-1 so they sort first.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_position ON documents(position);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	CREATE INDEX IF NOT EXISTS idx_documents_title ON documents(title);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) List(ctx context.Context) ([]*model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM documents ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []*model.Document{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return decodeDocument(body)
}

func (s *SQLiteStore) Save(ctx context.Context, doc *model.Document) error {
	if doc == nil {
		return errNilDocument
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		prevBody string
		prev     time.Time
		exists   = true
	)
	err = tx.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, doc.ID).Scan(&prevBody)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
	case err != nil:
		return fmt.Errorf("lookup document: %w", err)
	default:
		old, err := decodeDocument(prevBody)
		if err != nil {
			return err
		}
		prev = old.UpdatedAt
	}

	if err := prepareSave(doc, prev); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if exists {
		_, err = tx.ExecContext(ctx, `
		UPDATE documents SET title = ?, status = ?, body = ?, updated_at = ?
		WHERE id = ?`, doc.Title, string(doc.Status), string(body), doc.UpdatedAt, doc.ID)
	} else {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, position, title, status, body, updated_at)
		VALUES (?, (SELECT COALESCE(MIN(position), 0) - 1 FROM documents), ?, ?, ?, ?)`,
			doc.ID, doc.Title, string(doc.Status), string(body), doc.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status model.Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup document: %w", err)
	}
	doc, err := decodeDocument(body)
	if err != nil {
		return err
	}
	doc.Status = status
	doc.Touch(clock())
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET status = ?, body = ?, updated_at = ? WHERE id = ?`,
		string(status), string(raw), doc.UpdatedAt, id); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeDocument(body string) (*model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}
