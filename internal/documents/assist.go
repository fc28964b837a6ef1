package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dharsanguruparan/SignDesk/internal/agent"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

var ErrSectionNotFound = errors.New("section not found in document")

// LegalClauses drafts clauses for the document's type. Requirements default
// to the form's terms.
func (s *Service) LegalClauses(ctx context.Context, id, requirements string) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if s.writer == nil {
		return "", ErrNoWriter
	}
	if requirements == "" {
		requirements = formTerms(doc)
	}
	out, err := s.writer.GenerateLegalClauses(ctx, doc.Type, requirements)
	if err != nil {
		return "", fmt.Errorf("generate legal clauses: %w", err)
	}
	return out, nil
}

// RegenerateInput names the passage to rewrite. With Apply set the first
// occurrence of Section in the body is replaced and saved.
type RegenerateInput struct {
	Section      string `json:"section"`
	Instructions string `json:"instructions"`
	Apply        bool   `json:"apply"`
}

// RegenerateResult carries the new text and, when applied, the saved record.
type RegenerateResult struct {
	Text     string          `json:"text"`
	Document *model.Document `json:"document,omitempty"`
}

func (s *Service) RegenerateSection(ctx context.Context, id string, in RegenerateInput) (*RegenerateResult, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.writer == nil {
		return nil, ErrNoWriter
	}
	if in.Apply && !strings.Contains(doc.Content, in.Section) {
		return nil, ErrSectionNotFound
	}
	text, err := s.writer.RegenerateSection(ctx, in.Section, in.Instructions, doc.Content)
	if err != nil {
		return nil, fmt.Errorf("regenerate section: %w", err)
	}
	res := &RegenerateResult{Text: text}
	if !in.Apply {
		return res, nil
	}

	defer s.locks.Lock(id)()
	if doc, err = s.Get(ctx, id); err != nil {
		return nil, err
	}
	if !strings.Contains(doc.Content, in.Section) {
		return nil, ErrSectionNotFound
	}
	doc.Content = strings.Replace(doc.Content, in.Section, text, 1)
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	res.Document = doc
	return res, nil
}

// Review asks the validator agent for feedback on the current body.
func (s *Service) Review(ctx context.Context, id string) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if s.writer == nil {
		return "", ErrNoWriter
	}
	out, err := s.writer.ValidateDocument(ctx, doc.Content)
	if err != nil {
		return "", fmt.Errorf("review document: %w", err)
	}
	return out, nil
}

func formTerms(doc *model.Document) string {
	form, err := agent.ParseFormData(doc.FormData)
	if err != nil {
		return ""
	}
	return form.Terms
}
