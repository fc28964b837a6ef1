package store

import (
	"context"

	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// Discard is the store used when no persistence medium is available. Reads
// come back empty and writes are dropped.
type Discard struct{}

func (Discard) List(context.Context) ([]*model.Document, error) { return []*model.Document{}, nil }

func (Discard) Get(context.Context, string) (*model.Document, error) { return nil, nil }

func (Discard) Save(context.Context, *model.Document) error { return nil }

func (Discard) SetStatus(context.Context, string, model.Status) error { return nil }

func (Discard) Close() error { return nil }
