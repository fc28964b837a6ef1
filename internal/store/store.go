// Package store persists document records. Every backend keeps the same
// ordering contract: new records are prepended, replaced records keep their
// position. Callers always receive copies.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/config"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// Store is the persistence contract shared by every consumer of documents.
type Store interface {
	// List returns every record, prepend-on-insert and stable-on-update.
	List(ctx context.Context) ([]*model.Document, error)
	// Get returns (nil, nil) when no record has the id.
	Get(ctx context.Context, id string) (*model.Document, error)
	// Save replaces the record with the same id in place, or prepends it.
	// It refreshes doc.UpdatedAt (and CreatedAt when zero) before writing.
	Save(ctx context.Context, doc *model.Document) error
	// SetStatus updates only status and updatedAt. Unknown ids are ignored.
	SetStatus(ctx context.Context, id string, status model.Status) error
	Close() error
}

// ErrUnavailable is returned by Open when the medium cannot be opened and
// degrading is disabled.
var ErrUnavailable = errors.New("document store unavailable")

var errNilDocument = errors.New("nil document")

// clock is swapped in tests.
var clock = time.Now

// prepareSave validates doc and stamps it. prev is the stored UpdatedAt (zero
// for new records) so a stale copy still moves the timestamp forward.
func prepareSave(doc *model.Document, prev time.Time) error {
	if doc == nil {
		return errNilDocument
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	if doc.UpdatedAt.Before(prev) {
		doc.UpdatedAt = prev
	}
	doc.Touch(clock())
	return nil
}

// Open builds the backend named in cfg. When the medium fails to open and
// cfg.Degrade is set, the discard store is returned instead so callers keep
// working without persistence.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("component", "store"), zap.String("driver", cfg.Driver))

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		s = NewMemoryStore()
	case config.DriverBolt:
		s, err = OpenBolt(cfg.Path)
	case config.DriverSQLite:
		s, err = OpenSQLite(cfg.Path)
	case config.DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.DatabaseURL)
	case config.DriverNone:
		s = Discard{}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		if !cfg.Degrade {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		log.Warn("store unavailable, running without persistence", zap.Error(err))
		return Discard{}, nil
	}
	log.Info("document store ready")
	return s, nil
}
