package store_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/SignDesk/internal/config"
	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/store"
	"github.com/dharsanguruparan/SignDesk/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return store.NewMemoryStore()
	})
}

func TestBoltStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := store.OpenBolt(filepath.Join(t.TempDir(), "docs.bolt"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "docs.sqlite"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("SIGNDESK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SIGNDESK_TEST_DATABASE_URL not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := store.OpenPostgres(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		store.TruncatePostgres(t, s)
		return s
	})
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.bolt")
	ctx := context.Background()

	s, err := store.OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, storetest.NewDocument("first")))
	require.NoError(t, s.Save(ctx, storetest.NewDocument("second")))
	require.NoError(t, s.Close())

	reopened, err := store.OpenBolt(path)
	require.NoError(t, err)
	defer reopened.Close()
	docs, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "second", docs[0].ID)
}

func TestDiscardStore(t *testing.T) {
	ctx := context.Background()
	var s store.Store = store.Discard{}
	require.NoError(t, s.Save(ctx, storetest.NewDocument("doc1")))
	require.NoError(t, s.SetStatus(ctx, "doc1", model.StatusSent))
	docs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	doc, err := s.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	unreachable := filepath.Join(t.TempDir(), "missing-dir", "docs.bolt")

	tests := []struct {
		name     string
		cfg      config.StoreConfig
		wantType store.Store
		wantErr  bool
	}{
		{name: "memory", cfg: config.StoreConfig{Driver: config.DriverMemory}, wantType: &store.MemoryStore{}},
		{name: "none", cfg: config.StoreConfig{Driver: config.DriverNone}, wantType: store.Discard{}},
		{name: "bolt", cfg: config.StoreConfig{Driver: config.DriverBolt, Path: filepath.Join(t.TempDir(), "ok.bolt")}, wantType: &store.BoltStore{}},
		{name: "degrades", cfg: config.StoreConfig{Driver: config.DriverBolt, Path: unreachable, Degrade: true}, wantType: store.Discard{}},
		{name: "strict failure", cfg: config.StoreConfig{Driver: config.DriverBolt, Path: unreachable}, wantErr: true},
		{name: "unknown driver", cfg: config.StoreConfig{Driver: "etcd", Degrade: true}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := store.Open(ctx, tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			assert.IsType(t, tt.wantType, s)
		})
	}
}

func TestLocksSerializeReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Save(ctx, &model.Document{ID: "doc1", Status: model.StatusDraft}))
	locks := store.NewLocks()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("doc1")
			defer unlock()
			doc, err := s.Get(ctx, "doc1")
			assert.NoError(t, err)
			time.Sleep(time.Millisecond)
			doc.Content += "x"
			assert.NoError(t, s.Save(ctx, doc))
		}()
	}
	wg.Wait()

	doc, err := s.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.Len(t, doc.Content, writers)
	assert.Zero(t, locks.Held())
}

func TestLocksAreIndependentPerDocument(t *testing.T) {
	locks := store.NewLocks()
	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		locks.Lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
	unlockA()
	assert.Zero(t, locks.Held())
}
