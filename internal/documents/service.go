// Package documents is the application layer over the document store. It
// creates and generates documents, enforces the status graph, and drives the
// export, email, share and search flows.
package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/agent"
	"github.com/dharsanguruparan/SignDesk/internal/artifacts"
	"github.com/dharsanguruparan/SignDesk/internal/capture"
	"github.com/dharsanguruparan/SignDesk/internal/editor"
	"github.com/dharsanguruparan/SignDesk/internal/export"
	"github.com/dharsanguruparan/SignDesk/internal/mail"
	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/search"
	"github.com/dharsanguruparan/SignDesk/internal/signing"
	"github.com/dharsanguruparan/SignDesk/internal/store"
)

// ErrNotFound is returned for unknown document ids.
var ErrNotFound = model.ErrDocumentNotFound

const (
	defaultType      = "service"
	defaultTypeTitle = "Service Agreement"
	defaultClient    = "Client"
	defaultSender    = "Service Provider"
)

// Writer is the AI agent surface the service uses.
type Writer interface {
	GenerateDocument(ctx context.Context, form agent.FormData) (string, error)
	AdjustTone(ctx context.Context, content, tone string) (string, error)
	GenerateLegalClauses(ctx context.Context, documentType, requirements string) (string, error)
	RegenerateSection(ctx context.Context, section, instructions, fullDocument string) (string, error)
	ValidateDocument(ctx context.Context, content string) (string, error)
}

// Mailer sends document emails.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) (mail.Receipt, error)
}

// Deps are the collaborators of a Service. Index and Objects are optional.
type Deps struct {
	Store    store.Store
	Writer   Writer
	Mailer   Mailer
	Renderer *export.Renderer
	Signer   *signing.Signer
	Index    *search.Index
	Objects  artifacts.Store
	// Origin is the public base URL used in share links.
	Origin string
	Logger *zap.Logger
}

// Service implements the document operations.
type Service struct {
	store    store.Store
	writer   Writer
	mailer   Mailer
	renderer *export.Renderer
	signer   *signing.Signer
	index    *search.Index
	objects  artifacts.Store
	origin   string
	ids      *model.IDSource
	locks    *store.Locks
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for ids and dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(d Deps, opts ...Option) *Service {
	s := &Service{
		store:    d.Store,
		writer:   d.Writer,
		mailer:   d.Mailer,
		renderer: d.Renderer,
		signer:   d.Signer,
		index:    d.Index,
		objects:  d.Objects,
		origin:   strings.TrimRight(d.Origin, "/"),
		now:      time.Now,
		logger:   d.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = export.NewRenderer()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("component", "documents"))
	s.ids = model.NewIDSource(s.now)
	s.locks = store.NewLocks()
	return s
}

// Editor opens a field editor on document id sharing the service's id source
// and document locks.
func (s *Service) Editor(id string) *editor.Editor {
	return editor.New(s.store, id,
		editor.WithIDs(s.ids),
		editor.WithLocks(s.locks),
		editor.WithClock(s.now),
		editor.WithLogger(s.logger))
}

// Capture opens a signature capture session for one field.
func (s *Service) Capture(documentID string, fieldID int64) *capture.Session {
	return capture.NewSession(s.store, &capture.Target{DocumentID: documentID, FieldID: fieldID}, s.logger, capture.WithLocks(s.locks))
}

// CreateInput describes a new document. With Generate set, Content is drafted
// by the content agent from FormData (after applying Template, if any).
type CreateInput struct {
	Title    string          `json:"title"`
	Type     string          `json:"type"`
	Content  string          `json:"content"`
	FormData json.RawMessage `json:"formData,omitempty"`
	Template string          `json:"template,omitempty"`
	Generate bool            `json:"generate"`
}

// Create stores a new draft. Nothing is saved when generation fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Document, error) {
	form, err := agent.ParseFormData(in.FormData)
	if err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}
	formRaw := in.FormData
	if in.Template != "" {
		var ok bool
		if form, ok = form.ApplyTemplate(in.Template); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, in.Template)
		}
		if formRaw, err = json.Marshal(form); err != nil {
			return nil, fmt.Errorf("encode form data: %w", err)
		}
	}

	content := in.Content
	if in.Generate {
		if s.writer == nil {
			return nil, ErrNoWriter
		}
		if content, err = s.writer.GenerateDocument(ctx, form); err != nil {
			return nil, fmt.Errorf("generate document: %w", err)
		}
	}

	doc := &model.Document{
		ID:              s.ids.DocumentID(),
		Title:           in.Title,
		Type:            in.Type,
		Status:          model.StatusDraft,
		Content:         content,
		FormData:        formRaw,
		SignatureFields: []model.SignatureField{},
	}
	if doc.Title == "" {
		doc.Title = defaultTitle(form)
	}
	if doc.Type == "" {
		doc.Type = orDefault(form.DocumentType, defaultType)
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("document created", zap.String("document_id", doc.ID), zap.Bool("generated", in.Generate))
	return doc, nil
}

func defaultTitle(form agent.FormData) string {
	return orDefault(form.DocumentType, defaultTypeTitle) + " - " + orDefault(form.ClientCompanyName, defaultClient)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var (
	ErrUnknownTemplate = errors.New("unknown template")
	ErrNoWriter        = errors.New("content generation is not configured")
)

// save persists doc and refreshes the search index. Index failures are
// logged; the record is already durable.
func (s *Service) save(ctx context.Context, doc *model.Document) error {
	if err := s.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	s.reindex(doc)
	return nil
}

func (s *Service) reindex(doc *model.Document) {
	if s.index == nil {
		return
	}
	if err := s.index.Put(doc); err != nil {
		s.logger.Warn("index document failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
}

// Get returns ErrNotFound when id is unknown.
func (s *Service) Get(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Document, error) {
	return s.store.List(ctx)
}

// UpdateInput carries optional replacements; nil fields are left alone.
type UpdateInput struct {
	Title    *string         `json:"title,omitempty"`
	Type     *string         `json:"type,omitempty"`
	Content  *string         `json:"content,omitempty"`
	FormData json.RawMessage `json:"formData,omitempty"`
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Document, error) {
	defer s.locks.Lock(id)()
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		doc.Title = *in.Title
	}
	if in.Type != nil {
		doc.Type = *in.Type
	}
	if in.Content != nil {
		doc.Content = *in.Content
	}
	if in.FormData != nil {
		doc.FormData = in.FormData
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// AdjustTone rewrites the body in tone and saves it. On failure the stored
// content is untouched.
func (s *Service) AdjustTone(ctx context.Context, id, tone string) (*model.Document, error) {
	if !agent.ValidTone(tone) {
		return nil, fmt.Errorf("%w: %q", agent.ErrUnknownTone, tone)
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.writer == nil {
		return nil, ErrNoWriter
	}
	content, err := s.writer.AdjustTone(ctx, doc.Content, tone)
	if err != nil {
		return nil, fmt.Errorf("adjust tone: %w", err)
	}

	defer s.locks.Lock(id)()
	if doc, err = s.Get(ctx, id); err != nil {
		return nil, err
	}
	doc.Content = content
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SetStatus moves the document along the status graph.
func (s *Service) SetStatus(ctx context.Context, id string, status model.Status) (*model.Document, error) {
	defer s.locks.Lock(id)()
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := model.CheckTransition(doc.Status, status); err != nil {
		return nil, err
	}
	if err := s.store.SetStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.reindex(updated)
	return updated, nil
}
