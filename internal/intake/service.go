// Package intake accepts reference files (PDF, DOCX, plain text), extracts
// their text and asks the validator agent for an analysis. Every file is
// tracked on its own: a failure marks that file and nothing else.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/artifacts"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("file is empty")
	ErrNotReady        = errors.New("file has no extracted content yet")
)

// Analyzer produces the analysis text for extracted content.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, content, fileName string) (string, error)
}

// Dispatcher schedules Process for an uploaded file.
type Dispatcher interface {
	Dispatch(ctx context.Context, fileID string) error
}

// Limits bound what Upload accepts.
type Limits struct {
	MaxFileSize  int64
	AllowedTypes []string
}

func (l Limits) allowed(contentType string) bool {
	for _, t := range l.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

// Upload is one file as received.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Service runs the intake pipeline.
type Service struct {
	files      Files
	objects    artifacts.Store
	analyzer   Analyzer
	dispatcher Dispatcher
	limits     Limits
	logger     *zap.Logger
}

func NewService(files Files, objects artifacts.Store, analyzer Analyzer, limits Limits, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		files:    files,
		objects:  objects,
		analyzer: analyzer,
		limits:   limits,
		logger:   logger.With(zap.String("component", "intake")),
	}
}

// UseDispatcher sets where Upload sends accepted files. Without one, Upload
// processes files inline.
func (s *Service) UseDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// normalizeType drops MIME parameters and falls back to the extension when
// the client sent a generic type.
func normalizeType(name, contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return model.MIMEPDF
	case strings.HasSuffix(lower, ".docx"):
		return model.MIMEDOCX
	case strings.HasSuffix(lower, ".txt"):
		return model.MIMETXT
	}
	return contentType
}

// Upload records the files and schedules each accepted one. Rejected files
// come back with status error and a message; they never fail the batch. The
// returned error is reserved for the record store itself failing.
func (s *Service) Upload(ctx context.Context, uploads []Upload) ([]*model.FileRecord, error) {
	out := make([]*model.FileRecord, 0, len(uploads))
	for _, u := range uploads {
		rec, err := s.accept(ctx, u)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Service) accept(ctx context.Context, u Upload) (*model.FileRecord, error) {
	contentType := normalizeType(u.Name, u.ContentType)
	rec := &model.FileRecord{
		ID:          uuid.NewString(),
		Name:        u.Name,
		Size:        int64(len(u.Data)),
		ContentType: contentType,
		Kind:        model.KindOf(contentType),
		Status:      model.FileUploading,
	}

	var reject error
	switch {
	case !s.limits.allowed(contentType):
		reject = fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	case s.limits.MaxFileSize > 0 && rec.Size > s.limits.MaxFileSize:
		reject = fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, rec.Size, s.limits.MaxFileSize)
	case rec.Size == 0:
		reject = ErrEmpty
	}
	if reject != nil {
		rec.Status = model.FileError
		rec.Message = reject.Error()
		if err := s.files.Create(ctx, rec); err != nil {
			return nil, err
		}
		s.logger.Info("upload rejected", zap.String("file_id", rec.ID), zap.String("name", rec.Name), zap.Error(reject))
		return rec, nil
	}

	rec.ObjectKey = artifacts.NewKey("uploads", u.Name)
	if err := s.files.Create(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.objects.Put(ctx, artifacts.KindRaw, rec.ObjectKey, u.Data, contentType); err != nil {
		return s.fail(ctx, rec.ID, fmt.Errorf("store upload: %w", err))
	}

	if s.dispatcher == nil {
		_ = s.Process(ctx, rec.ID)
	} else if err := s.dispatcher.Dispatch(ctx, rec.ID); err != nil {
		return s.fail(ctx, rec.ID, err)
	}
	return s.files.Get(ctx, rec.ID)
}

// Fail marks a file as errored. It is the dispatcher's reject hook.
func (s *Service) Fail(ctx context.Context, id string, cause error) {
	if err := s.files.MarkFailed(ctx, id, cause.Error()); err != nil {
		s.logger.Error("mark failed", zap.String("file_id", id), zap.Error(err))
	}
}

func (s *Service) fail(ctx context.Context, id string, cause error) (*model.FileRecord, error) {
	s.Fail(ctx, id, cause)
	return s.files.Get(ctx, id)
}

// Process extracts and analyzes one uploaded file. The outcome is always
// recorded on the file; the returned error is for the job runner.
func (s *Service) Process(ctx context.Context, id string) error {
	rec, err := s.files.Get(ctx, id)
	if err != nil {
		return err
	}
	failure := func(err error) error {
		s.logger.Warn("intake failed", zap.String("file_id", id), zap.Error(err))
		s.Fail(ctx, id, err)
		return err
	}

	if err := s.files.MarkStatus(ctx, id, model.FileExtracting); err != nil {
		return failure(err)
	}
	obj, err := s.objects.Get(ctx, artifacts.KindRaw, rec.ObjectKey)
	if err != nil {
		return failure(fmt.Errorf("load upload: %w", err))
	}
	text, err := ExtractText(rec.ContentType, obj.Data, s.limits.MaxFileSize)
	if err != nil {
		return failure(err)
	}
	if err := s.files.MarkExtracted(ctx, id, text); err != nil {
		return failure(err)
	}
	return s.analyze(ctx, id, rec.Name, text, failure)
}

// Reanalyze runs the analysis again on already extracted content.
func (s *Service) Reanalyze(ctx context.Context, id string) (*model.FileRecord, error) {
	rec, err := s.files.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Content == "" {
		return nil, ErrNotReady
	}
	failure := func(err error) error {
		s.Fail(ctx, id, err)
		return err
	}
	if err := s.files.MarkStatus(ctx, id, model.FileProcessing); err != nil {
		return nil, err
	}
	_ = s.analyze(ctx, id, rec.Name, rec.Content, failure)
	return s.files.Get(ctx, id)
}

func (s *Service) analyze(ctx context.Context, id, name, text string, failure func(error) error) error {
	analysis, err := s.analyzer.AnalyzeDocument(ctx, text, name)
	if err != nil {
		return failure(fmt.Errorf("analyze: %w", err))
	}
	if err := s.files.MarkCompleted(ctx, id, analysis); err != nil {
		return failure(err)
	}
	s.logger.Info("file analyzed", zap.String("file_id", id), zap.Int("content_bytes", len(text)))
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	return s.files.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*model.FileRecord, error) {
	return s.files.List(ctx)
}
