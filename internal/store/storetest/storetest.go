// Package storetest holds the behavior every store.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// NewDocument builds a valid draft record with one unfilled field.
func NewDocument(id string) *model.Document {
	field, _ := model.NewField(1, model.FieldSignature, &model.Point{X: 300, Y: 300})
	return &model.Document{
		ID:              id,
		Title:           "Service Agreement - " + id,
		Type:            "service",
		Status:          model.StatusDraft,
		Content:         "This agreement is made between the parties.",
		FormData:        []byte(`{"documentType":"service"}`),
		SignatureFields: []model.SignatureField{field},
	}
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		s := newStore(t)
		doc, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("SaveThenGet", func(t *testing.T) {
		s := newStore(t)
		doc := NewDocument("doc1")
		require.NoError(t, s.Save(ctx, doc))
		assert.False(t, doc.UpdatedAt.IsZero())
		assert.False(t, doc.CreatedAt.IsZero())

		got, err := s.Get(ctx, "doc1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, doc.Title, got.Title)
		assert.Equal(t, doc.Content, got.Content)
		assert.JSONEq(t, string(doc.FormData), string(got.FormData))
		assert.Equal(t, doc.SignatureFields, got.SignatureFields)
		assert.True(t, doc.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("PrependOnInsertStableOnUpdate", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.Save(ctx, NewDocument(id)))
		}
		assert.Equal(t, []string{"c", "b", "a"}, ids(t, s))

		for i := 0; i < 3; i++ {
			doc, err := s.Get(ctx, "a")
			require.NoError(t, err)
			doc.Title = fmt.Sprintf("revision %d", i)
			require.NoError(t, s.Save(ctx, doc))
		}
		assert.Equal(t, []string{"c", "b", "a"}, ids(t, s))

		last, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "revision 2", last.Title)
	})

	t.Run("ResaveOnlyMovesUpdatedAt", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, NewDocument("doc1")))
		before, err := s.Get(ctx, "doc1")
		require.NoError(t, err)

		again, err := s.Get(ctx, "doc1")
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, again))
		after, err := s.Get(ctx, "doc1")
		require.NoError(t, err)

		assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
		assert.True(t, after.CreatedAt.Equal(before.CreatedAt))
		after.UpdatedAt = before.UpdatedAt
		after.CreatedAt = before.CreatedAt
		assert.Equal(t, before.SignatureFields, after.SignatureFields)
		assert.Equal(t, before.Title, after.Title)
		assert.Equal(t, before.Status, after.Status)
	})

	t.Run("StaleCopyStillAdvancesUpdatedAt", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, NewDocument("doc1")))
		stale, err := s.Get(ctx, "doc1")
		require.NoError(t, err)
		fresh, err := s.Get(ctx, "doc1")
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, fresh))
		require.NoError(t, s.Save(ctx, stale))
		assert.True(t, stale.UpdatedAt.After(fresh.UpdatedAt))
	})

	t.Run("SetStatus", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, NewDocument("doc1")))
		before, err := s.Get(ctx, "doc1")
		require.NoError(t, err)

		require.NoError(t, s.SetStatus(ctx, "doc1", model.StatusSent))
		after, err := s.Get(ctx, "doc1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusSent, after.Status)
		assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
		assert.Equal(t, before.Content, after.Content)
	})

	t.Run("SetStatusMissingIsNoop", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SetStatus(ctx, "ghost", model.StatusSent))
		docs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("RejectsInvalidRecord", func(t *testing.T) {
		s := newStore(t)
		doc := NewDocument("doc1")
		doc.SignatureFields = append(doc.SignatureFields, doc.SignatureFields[0])
		assert.ErrorIs(t, s.Save(ctx, doc), model.ErrDuplicateField)
		got, err := s.Get(ctx, "doc1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		s := newStore(t)
		doc := NewDocument("doc1")
		require.NoError(t, s.Save(ctx, doc))
		doc.Title = "mutated after save"

		got, err := s.Get(ctx, "doc1")
		require.NoError(t, err)
		got.SignatureFields[0].Label = "mutated after get"

		again, err := s.Get(ctx, "doc1")
		require.NoError(t, err)
		assert.NotEqual(t, "mutated after save", again.Title)
		assert.Equal(t, "Signature", again.SignatureFields[0].Label)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, NewDocument("shared")))
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				doc := NewDocument(fmt.Sprintf("doc-%d", i))
				assert.NoError(t, s.Save(ctx, doc))
				shared := NewDocument("shared")
				shared.Title = fmt.Sprintf("writer %d", i)
				assert.NoError(t, s.Save(ctx, shared))
			}(i)
		}
		wg.Wait()
		docs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, docs, 9)
		assert.Equal(t, "shared", docs[len(docs)-1].ID)
	})
}

func ids(t *testing.T, s store.Store) []string {
	t.Helper()
	docs, err := s.List(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
