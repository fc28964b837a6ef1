package capture

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/store"
)

var zigzag = []model.Point{{X: 20, Y: 60}, {X: 80, Y: 30}, {X: 140, Y: 90}, {X: 220, Y: 40}}

func TestPadDrawAndClear(t *testing.T) {
	pad := NewPad()
	assert.True(t, pad.Empty())
	require.NoError(t, pad.Stroke(zigzag))
	assert.False(t, pad.Empty())
	pad.Clear()
	assert.True(t, pad.Empty())
}

func TestPadPNGDimensions(t *testing.T) {
	pad := NewPad()
	require.NoError(t, pad.Stroke(zigzag))
	raw, err := pad.PNG()
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, Width, img.Bounds().Dx())
	assert.Equal(t, Height, img.Bounds().Dy())
}

func TestPadTypeEveryStyle(t *testing.T) {
	for _, style := range Styles() {
		t.Run(string(style), func(t *testing.T) {
			pad := NewPad()
			require.NoError(t, pad.SetMode(ModeType))
			require.NoError(t, pad.Type("Jane Doe", style))
			assert.False(t, pad.Empty())
			assert.Equal(t, "Jane Doe", pad.Text())
			require.NoError(t, pad.Generate())
			assert.False(t, pad.Empty())
		})
	}
}

func TestPadModeRules(t *testing.T) {
	pad := NewPad()
	assert.ErrorIs(t, pad.Type("x", StyleCursive), ErrWrongMode)
	assert.ErrorIs(t, pad.Generate(), ErrWrongMode)
	assert.ErrorIs(t, pad.SetMode("paint"), ErrUnknownMode)

	require.NoError(t, pad.Stroke(zigzag))
	require.NoError(t, pad.SetMode(ModeType))
	assert.True(t, pad.Empty(), "switching modes drops drawn strokes")
	assert.ErrorIs(t, pad.Stroke(zigzag), ErrWrongMode)
	assert.ErrorIs(t, pad.Type("x", "gothic"), ErrUnknownStyle)

	require.NoError(t, pad.Type("Jane", StyleSerif))
	require.NoError(t, pad.SetMode(ModeDraw))
	assert.True(t, pad.Empty(), "switching modes drops typed text")
	assert.Empty(t, pad.Text())
}

func TestDataURIRoundTrip(t *testing.T) {
	pad := NewPad()
	require.NoError(t, pad.Stroke(zigzag))
	uri, err := pad.DataURI()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	raw, ok := DecodePNGDataURI(uri)
	require.True(t, ok)
	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)

	_, ok = DecodePNGDataURI("data:text/plain;base64,aGk=")
	assert.False(t, ok)
}

func seedDocument(t *testing.T, s store.Store) *model.Document {
	t.Helper()
	sig, _ := model.NewField(1, model.FieldSignature, &model.Point{X: 300, Y: 300})
	date, _ := model.NewField(2, model.FieldDate, nil)
	text, _ := model.NewField(3, model.FieldText, nil)
	doc := &model.Document{ID: "doc1", Status: model.StatusDraft, SignatureFields: []model.SignatureField{sig, date, text}}
	require.NoError(t, s.Save(context.Background(), doc))
	return doc
}

func TestSaveToSignatureField(t *testing.T) {
	s := store.NewMemoryStore()
	seedDocument(t, s)
	ctx := context.Background()

	sess := NewSession(s, &Target{DocumentID: "doc1", FieldID: 1}, nil)
	require.NoError(t, sess.Pad.Stroke(zigzag))
	res, err := sess.Save(ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Field)
	assert.True(t, res.Field.Filled)
	assert.Equal(t, res.Preview, res.Field.SignatureData)
	_, open := sess.Target()
	assert.False(t, open, "a save closes the target")

	doc, err := s.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.True(t, doc.SignatureFields[0].Filled)
	assert.NotEmpty(t, doc.SignatureFields[0].SignatureData)
	assert.False(t, doc.SignatureFields[1].Filled, "other fields untouched")
	assert.False(t, doc.SignatureFields[2].Filled)
	require.NoError(t, doc.Validate())
}

func TestSaveDateStoresText(t *testing.T) {
	s := store.NewMemoryStore()
	seedDocument(t, s)
	sess := NewSession(s, &Target{DocumentID: "doc1", FieldID: 2}, nil)
	require.NoError(t, sess.Prefill("3/9/2026"))
	res, err := sess.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3/9/2026", res.Field.SignatureData)
	assert.True(t, res.Field.Filled)
}

func TestSaveRejectsEmptyCapture(t *testing.T) {
	s := store.NewMemoryStore()
	seedDocument(t, s)
	ctx := context.Background()

	_, err := NewSession(s, &Target{DocumentID: "doc1", FieldID: 1}, nil).Save(ctx)
	assert.ErrorIs(t, err, ErrEmptyCapture)

	drawn := NewSession(s, &Target{DocumentID: "doc1", FieldID: 3}, nil)
	require.NoError(t, drawn.Pad.Stroke(zigzag))
	_, err = drawn.Save(ctx)
	assert.ErrorIs(t, err, ErrEmptyCapture, "text fields need typed text")
}

func TestSaveWithoutTargetIsPreviewOnly(t *testing.T) {
	s := store.NewMemoryStore()
	before := seedDocument(t, s)
	sess := NewSession(s, nil, nil)
	require.NoError(t, sess.Pad.Stroke(zigzag))
	res, err := sess.Save(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Preview)
	assert.Nil(t, res.Field)

	after, err := s.Get(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestSaveMissingTargets(t *testing.T) {
	s := store.NewMemoryStore()
	seedDocument(t, s)
	ctx := context.Background()

	sess := NewSession(s, &Target{DocumentID: "nope", FieldID: 1}, nil)
	require.NoError(t, sess.Pad.Stroke(zigzag))
	_, err := sess.Save(ctx)
	assert.ErrorIs(t, err, model.ErrDocumentNotFound)

	sess = NewSession(s, &Target{DocumentID: "doc1", FieldID: 99}, nil)
	require.NoError(t, sess.Pad.Stroke(zigzag))
	_, err = sess.Save(ctx)
	assert.ErrorIs(t, err, model.ErrFieldNotFound)
}

func TestRender(t *testing.T) {
	pad, err := Render(Request{Mode: ModeType, Text: "J. Doe", Style: StyleMonospace})
	require.NoError(t, err)
	assert.False(t, pad.Empty())

	pad, err = Render(Request{Strokes: [][]model.Point{zigzag}})
	require.NoError(t, err)
	assert.Equal(t, ModeDraw, pad.Mode())
	assert.False(t, pad.Empty())

	_, err = Render(Request{Mode: ModeType, Text: "x", Style: "fraktur"})
	assert.ErrorIs(t, err, ErrUnknownStyle)
}

type slowStore struct {
	store.Store
}

func (s slowStore) Get(ctx context.Context, id string) (*model.Document, error) {
	time.Sleep(time.Millisecond)
	return s.Store.Get(ctx, id)
}

func TestConcurrentSavesKeepEveryField(t *testing.T) {
	s := slowStore{Store: store.NewMemoryStore()}
	seedDocument(t, s)
	ctx := context.Background()
	locks := store.NewLocks()

	var wg sync.WaitGroup
	for _, fieldID := range []int64{1, 2, 3} {
		wg.Add(1)
		go func(fieldID int64) {
			defer wg.Done()
			sess := NewSession(s, &Target{DocumentID: "doc1", FieldID: fieldID}, nil, WithLocks(locks))
			if fieldID == 1 {
				assert.NoError(t, sess.Pad.Stroke(zigzag))
			} else {
				assert.NoError(t, sess.Prefill("3/9/2026"))
			}
			_, err := sess.Save(ctx)
			assert.NoError(t, err)
		}(fieldID)
	}
	wg.Wait()

	doc, err := s.Get(ctx, "doc1")
	require.NoError(t, err)
	for _, f := range doc.SignatureFields {
		assert.True(t, f.Filled, "field %d", f.ID)
	}
}
