// Package editor turns placement gestures into signature-field mutations.
// Every mutation is a read-modify-write of the whole document followed by an
// immediate save.
package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/store"
)

// DragThreshold is how far (in canvas units, on either axis) the pointer must
// travel from where it went down before a gesture counts as a drag.
const DragThreshold = 5.0

// DateLayout renders the current date offered when a date field is clicked.
const DateLayout = "1/2/2006"

// ErrNoGesture is returned when a move or release arrives without a press.
var ErrNoGesture = errors.New("no gesture in progress")

// Phase is the gesture state.
type Phase int

const (
	Idle Phase = iota
	Pressed
	Dragging
)

func (p Phase) String() string {
	switch p {
	case Pressed:
		return "pressed"
	case Dragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Outcome is how a finished gesture was interpreted.
type Outcome string

const (
	OutcomeDragged Outcome = "dragged"
	OutcomeClicked Outcome = "clicked"
)

// Viewport describes the scrollable container the canvas sits in. Pointer
// positions are in client space; Origin is the container's client position
// and Scroll its scroll offset.
type Viewport struct {
	Origin model.Point `json:"origin"`
	Scroll model.Point `json:"scroll"`
}

// ToCanvas maps a client-space point into canvas space.
func (v Viewport) ToCanvas(p model.Point) model.Point {
	return model.Point{X: p.X - v.Origin.X + v.Scroll.X, Y: p.Y - v.Origin.Y + v.Scroll.Y}
}

// CaptureRequest asks the caller to open signature capture for one field.
type CaptureRequest struct {
	DocumentID string          `json:"documentId"`
	FieldID    int64           `json:"fieldId"`
	FieldType  model.FieldType `json:"fieldType"`
	// Prefill is set for date fields: the date is rendered without input.
	Prefill string `json:"prefill,omitempty"`
}

// Result describes a completed gesture.
type Result struct {
	Outcome Outcome              `json:"outcome"`
	Field   model.SignatureField `json:"field"`
	Capture *CaptureRequest      `json:"capture,omitempty"`
}

// FieldUpdate carries the editable properties; nil members are left alone.
// Position places the field's top-left corner.
type FieldUpdate struct {
	Label    *string       `json:"label,omitempty"`
	Signer   *model.Signer `json:"signer,omitempty"`
	Position *model.Point  `json:"position,omitempty"`
}

// Option configures an Editor.
type Option func(*Editor)

// WithClock overrides time.Now (used for date prefill).
func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// WithIDs shares an id source between editors.
func WithIDs(ids *model.IDSource) Option {
	return func(e *Editor) { e.ids = ids }
}

// WithLocks shares per-document locks with other writers of the same store.
func WithLocks(l *store.Locks) Option {
	return func(e *Editor) { e.locks = l }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// Editor edits the fields of one document. Only one field can be mid-gesture.
type Editor struct {
	store  store.Store
	docID  string
	ids    *model.IDSource
	locks  *store.Locks
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	phase    Phase
	origin   model.Point
	active   int64
	working  *model.Document
	selected int64
	hasSel   bool
}

// New returns an editor for docID backed by s.
func New(s store.Store, docID string, opts ...Option) *Editor {
	e := &Editor{store: s, docID: docID, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.ids == nil {
		e.ids = model.NewIDSource(e.now)
	}
	if e.locks == nil {
		e.locks = store.NewLocks()
	}
	return e
}

func (e *Editor) load(ctx context.Context) (*model.Document, error) {
	doc, err := e.store.Get(ctx, e.docID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", e.docID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrDocumentNotFound, e.docID)
	}
	return doc, nil
}

func (e *Editor) nextFieldID(doc *model.Document) int64 {
	id := e.ids.Next()
	for doc.FieldIndex(id) >= 0 {
		id = e.ids.Next()
	}
	return id
}

// AddField creates a field of type t centered on drop (or at the default
// position when drop is nil), appends it, and saves the document.
func (e *Editor) AddField(ctx context.Context, t model.FieldType, drop *model.Point) (model.SignatureField, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.locks.Lock(e.docID)()

	doc, err := e.load(ctx)
	if err != nil {
		return model.SignatureField{}, err
	}
	field, err := model.NewField(e.nextFieldID(doc), t, drop)
	if err != nil {
		return model.SignatureField{}, err
	}
	doc.SignatureFields = append(doc.SignatureFields, field)
	if err := e.store.Save(ctx, doc); err != nil {
		return model.SignatureField{}, fmt.Errorf("save document: %w", err)
	}
	e.logger.Debug("field added", zap.String("document_id", e.docID), zap.Int64("field_id", field.ID), zap.String("type", string(t)))
	return field, nil
}

// PointerDown selects the field and records where the pointer went down. A
// gesture already in progress is discarded.
func (e *Editor) PointerDown(ctx context.Context, fieldID int64, p model.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reset()
	doc, err := e.load(ctx)
	if err != nil {
		return err
	}
	if doc.FieldIndex(fieldID) < 0 {
		return fmt.Errorf("%w: %d", model.ErrFieldNotFound, fieldID)
	}
	e.working = doc
	e.active = fieldID
	e.origin = p
	e.phase = Pressed
	e.selected, e.hasSel = fieldID, true
	return nil
}

// PointerMove advances the gesture. Once the pointer leaves the threshold box
// around the press origin the gesture becomes a drag and the field center
// follows the pointer. It reports whether the field moved.
func (e *Editor) PointerMove(p model.Point, vp Viewport) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case Idle:
		return false, ErrNoGesture
	case Pressed:
		if math.Abs(p.X-e.origin.X) <= DragThreshold && math.Abs(p.Y-e.origin.Y) <= DragThreshold {
			return false, nil
		}
		e.phase = Dragging
	}
	field, _ := e.working.Field(e.active)
	field.CenterOn(vp.ToCanvas(p))
	return true, nil
}

// PointerUp ends the gesture. A drag saves the field's new position onto the
// current record; a click saves nothing and, for capturable fields, yields a
// CaptureRequest.
func (e *Editor) PointerUp(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == Idle {
		return Result{}, ErrNoGesture
	}
	defer e.reset()

	field, _ := e.working.Field(e.active)
	res := Result{Field: *field}
	if e.phase == Dragging {
		moved, err := e.commitDrag(ctx, field)
		if err != nil {
			return Result{}, err
		}
		res.Field = moved
		res.Outcome = OutcomeDragged
		return res, nil
	}

	res.Outcome = OutcomeClicked
	if field.Type.Capturable() {
		res.Capture = &CaptureRequest{DocumentID: e.docID, FieldID: field.ID, FieldType: field.Type}
		if field.Type == model.FieldDate {
			res.Capture.Prefill = e.now().Format(DateLayout)
		}
	}
	return res, nil
}

// commitDrag copies the dragged position onto a fresh load of the record so
// edits saved while the pointer was down are kept.
func (e *Editor) commitDrag(ctx context.Context, dragged *model.SignatureField) (model.SignatureField, error) {
	defer e.locks.Lock(e.docID)()
	doc, err := e.load(ctx)
	if err != nil {
		return model.SignatureField{}, err
	}
	field, ok := doc.Field(dragged.ID)
	if !ok {
		return model.SignatureField{}, fmt.Errorf("%w: %d", model.ErrFieldNotFound, dragged.ID)
	}
	field.X, field.Y = dragged.X, dragged.Y
	out := *field
	if err := e.store.Save(ctx, doc); err != nil {
		return model.SignatureField{}, fmt.Errorf("save document: %w", err)
	}
	return out, nil
}

// Phase reports the current gesture state.
func (e *Editor) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Selected returns the selected field id, if any.
func (e *Editor) Selected() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected, e.hasSel
}

func (e *Editor) reset() {
	e.phase = Idle
	e.working = nil
	e.active = 0
	e.origin = model.Point{}
}

// UpdateField applies label, signer and position in one save. An update that
// changes nothing is not saved.
func (e *Editor) UpdateField(ctx context.Context, id int64, upd FieldUpdate) (model.SignatureField, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if upd.Signer != nil && !upd.Signer.Valid() {
		return model.SignatureField{}, fmt.Errorf("%w: %q", model.ErrInvalidSigner, *upd.Signer)
	}
	defer e.locks.Lock(e.docID)()
	doc, err := e.load(ctx)
	if err != nil {
		return model.SignatureField{}, err
	}
	field, ok := doc.Field(id)
	if !ok {
		return model.SignatureField{}, fmt.Errorf("%w: %d", model.ErrFieldNotFound, id)
	}
	before := *field
	if upd.Label != nil {
		field.Label = *upd.Label
	}
	if upd.Signer != nil {
		field.Signer = *upd.Signer
	}
	if upd.Position != nil {
		field.X, field.Y = upd.Position.X, upd.Position.Y
	}
	out := *field
	if out == before {
		return out, nil
	}
	if err := e.store.Save(ctx, doc); err != nil {
		return model.SignatureField{}, fmt.Errorf("save document: %w", err)
	}
	return out, nil
}

// MoveField places a field's top-left corner at p. It is the non-gesture
// counterpart of a drag, used by the CLI.
func (e *Editor) MoveField(ctx context.Context, id int64, p model.Point) (model.SignatureField, error) {
	return e.UpdateField(ctx, id, FieldUpdate{Position: &p})
}

// DeleteField removes the field, clears the selection, and saves. Unknown ids
// are ignored.
func (e *Editor) DeleteField(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.locks.Lock(e.docID)()

	doc, err := e.load(ctx)
	if err != nil {
		return err
	}
	idx := doc.FieldIndex(id)
	if idx < 0 {
		return nil
	}
	doc.SignatureFields = append(doc.SignatureFields[:idx], doc.SignatureFields[idx+1:]...)
	e.selected, e.hasSel = 0, false
	if e.active == id {
		e.reset()
	}
	if err := e.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}
