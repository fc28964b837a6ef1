package capture

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/store"
)

// Target designates the field a capture will be attached to.
type Target struct {
	DocumentID string `json:"documentId"`
	FieldID    int64  `json:"fieldId"`
}

// Request is a complete capture as submitted over the API: either strokes
// (draw) or a typed name with a style (type).
type Request struct {
	Mode    Mode            `json:"mode"`
	Strokes [][]model.Point `json:"strokes,omitempty"`
	Text    string          `json:"text,omitempty"`
	Style   Style           `json:"style,omitempty"`
}

// Render replays req onto a fresh pad.
func Render(req Request) (*Pad, error) {
	pad := NewPad()
	mode := req.Mode
	if mode == "" {
		mode = ModeDraw
	}
	if err := pad.SetMode(mode); err != nil {
		return nil, err
	}
	switch mode {
	case ModeDraw:
		for _, s := range req.Strokes {
			if err := pad.Stroke(s); err != nil {
				return nil, err
			}
		}
	case ModeType:
		style := req.Style
		if style == "" {
			style = StyleCursive
		}
		if err := pad.Type(req.Text, style); err != nil {
			return nil, err
		}
	}
	return pad, nil
}

// Result is what a save produced.
type Result struct {
	// Preview is always the PNG data URI of the pad.
	Preview string `json:"preview"`
	// Field is the updated field, nil for a preview-only capture.
	Field *model.SignatureField `json:"field,omitempty"`
}

// Session pairs a pad with an optional signing target. A successful save
// closes the target.
type Session struct {
	Pad    *Pad
	target *Target
	store  store.Store
	locks  *store.Locks
	logger *zap.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLocks serializes the save with other writers of the same document.
func WithLocks(l *store.Locks) SessionOption {
	return func(s *Session) { s.locks = l }
}

// NewSession opens capture against s. target may be nil for preview only.
func NewSession(s store.Store, target *Target, logger *zap.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	sess := &Session{Pad: NewPad(), target: target, store: s, logger: logger}
	for _, opt := range opts {
		opt(sess)
	}
	if sess.locks == nil {
		sess.locks = store.NewLocks()
	}
	return sess
}

// Prefill switches the pad to typed mode with text already rendered, as used
// for date fields.
func (s *Session) Prefill(text string) error {
	if err := s.Pad.SetMode(ModeType); err != nil {
		return err
	}
	return s.Pad.Type(text, StyleSansSerif)
}

// Target returns the open target, if any.
func (s *Session) Target() (Target, bool) {
	if s.target == nil {
		return Target{}, false
	}
	return *s.target, true
}

// Save attaches the capture to the target field and persists the document.
// Signature and initial fields get the PNG data URI; date and text fields get
// the literal typed text. Without a target only the preview is returned.
func (s *Session) Save(ctx context.Context) (Result, error) {
	preview, err := s.Pad.DataURI()
	if err != nil {
		return Result{}, err
	}
	res := Result{Preview: preview}
	if s.target == nil {
		return res, nil
	}

	defer s.locks.Lock(s.target.DocumentID)()
	doc, err := s.store.Get(ctx, s.target.DocumentID)
	if err != nil {
		return Result{}, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return Result{}, fmt.Errorf("%w: %s", model.ErrDocumentNotFound, s.target.DocumentID)
	}
	field, ok := doc.Field(s.target.FieldID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", model.ErrFieldNotFound, s.target.FieldID)
	}

	var data string
	if field.Type.Graphic() {
		if s.Pad.Empty() {
			return Result{}, ErrEmptyCapture
		}
		data = preview
	} else {
		data = s.Pad.Text()
		if data == "" {
			return Result{}, ErrEmptyCapture
		}
	}
	field.Fill(data)
	out := *field
	if err := s.store.Save(ctx, doc); err != nil {
		return Result{}, fmt.Errorf("save document: %w", err)
	}
	s.logger.Info("signature captured",
		zap.String("document_id", doc.ID),
		zap.Int64("field_id", out.ID),
		zap.String("type", string(out.Type)))
	s.target = nil
	res.Field = &out
	return res, nil
}
