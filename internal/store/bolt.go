package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dharsanguruparan/SignDesk/internal/model"
)

var (
	boltBucket = []byte("signdesk")
	// boltKey holds the whole collection as one JSON array, so each save is a
	// single read-modify-write inside one transaction.
	boltKey = []byte("documents")
)

// BoltStore keeps the document list in an embedded bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the bolt file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func readAll(tx *bolt.Tx) ([]*model.Document, error) {
	raw := tx.Bucket(boltBucket).Get(boltKey)
	if raw == nil {
		return []*model.Document{}, nil
	}
	var docs []*model.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

func writeAll(tx *bolt.Tx, docs []*model.Document) error {
	raw, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}
	return tx.Bucket(boltBucket).Put(boltKey, raw)
}

func (b *BoltStore) List(_ context.Context) ([]*model.Document, error) {
	var docs []*model.Document
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		docs, err = readAll(tx)
		return err
	})
	return docs, err
}

func (b *BoltStore) Get(_ context.Context, id string) (*model.Document, error) {
	var found *model.Document
	err := b.db.View(func(tx *bolt.Tx) error {
		docs, err := readAll(tx)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if d.ID == id {
				found = d
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (b *BoltStore) Save(_ context.Context, doc *model.Document) error {
	if doc == nil {
		return errNilDocument
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		docs, err := readAll(tx)
		if err != nil {
			return err
		}
		idx := indexOf(docs, doc.ID)
		var prev time.Time
		if idx >= 0 {
			prev = docs[idx].UpdatedAt
		}
		if err := prepareSave(doc, prev); err != nil {
			return err
		}
		if idx >= 0 {
			docs[idx] = doc
		} else {
			docs = append([]*model.Document{doc}, docs...)
		}
		return writeAll(tx, docs)
	})
}

func (b *BoltStore) SetStatus(_ context.Context, id string, status model.Status) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		docs, err := readAll(tx)
		if err != nil {
			return err
		}
		idx := indexOf(docs, id)
		if idx < 0 {
			return nil
		}
		docs[idx].Status = status
		docs[idx].Touch(clock())
		return writeAll(tx, docs)
	})
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

func indexOf(docs []*model.Document, id string) int {
	for i, d := range docs {
		if d.ID == id {
			return i
		}
	}
	return -1
}
