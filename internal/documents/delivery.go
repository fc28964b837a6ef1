package documents

import (
	"context"
	"errors"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/agent"
	"github.com/dharsanguruparan/SignDesk/internal/artifacts"
	"github.com/dharsanguruparan/SignDesk/internal/export"
	"github.com/dharsanguruparan/SignDesk/internal/mail"
	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/signing"
)

var ErrSharingDisabled = errors.New("share links are not configured")

// Export is a rendered PDF, optionally archived to object storage.
type Export struct {
	Artifact  *export.Artifact
	ObjectKey string
	// URL is a presigned download link when object storage is configured.
	URL string
}

// Export renders the document with its field overlay.
func (s *Service) Export(ctx context.Context, id string) (*Export, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	art, err := s.renderer.Render(doc.Title, doc.Content, doc.SignatureFields)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	out := &Export{Artifact: art}
	if s.objects == nil {
		return out, nil
	}

	key := path.Join("exports", doc.ID, art.FileName)
	if err := s.objects.Put(ctx, artifacts.KindArtifact, key, art.Data, export.ContentType); err != nil {
		// Archive failures do not fail the export.
		s.logger.Warn("archive export failed", zap.String("document_id", doc.ID), zap.Error(err))
		return out, nil
	}
	out.ObjectKey = key
	if out.URL, err = s.objects.PresignURL(ctx, artifacts.KindArtifact, key); err != nil {
		s.logger.Warn("presign export failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
	return out, nil
}

// EmailDraft is the pre-filled send form for a document.
type EmailDraft struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// Draft builds the default email: subject "<title> - Ready for Review", a
// generated body, and the client contact from the form as recipient.
func (s *Service) Draft(ctx context.Context, id string) (EmailDraft, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return EmailDraft{}, err
	}
	return s.draft(doc), nil
}

func (s *Service) draft(doc *model.Document) EmailDraft {
	form, _ := agent.ParseFormData(doc.FormData)
	d := EmailDraft{
		Recipients: mail.SplitRecipients(form.ClientContactEmail),
		Subject:    mail.DefaultSubject(doc.Title),
		Body: mail.GenerateBody(doc.Title,
			orDefault(form.ContactName, defaultSender),
			orDefault(form.ClientContactName, defaultClient),
			s.now()),
	}
	if len(doc.Recipients) > 0 {
		d.Recipients = append([]string(nil), doc.Recipients...)
	}
	return d
}

// SendInput overrides the draft. Empty values fall back to it.
type SendInput struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// SendResult reports the receipt and the document after the attempt.
type SendResult struct {
	Receipt  mail.Receipt    `json:"receipt"`
	Document *model.Document `json:"document"`
}

// Send emails the document with its PDF attached. Only a delivered message
// marks the document sent and records the recipients.
func (s *Service) Send(ctx context.Context, id string, in SendInput) (*SendResult, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	draft := s.draft(doc)
	if len(in.Recipients) == 0 {
		in.Recipients = draft.Recipients
	}
	if in.Subject == "" {
		in.Subject = draft.Subject
	}
	if in.Body == "" {
		in.Body = draft.Body
	}

	exp, err := s.Export(ctx, id)
	if err != nil {
		return nil, err
	}
	receipt, err := s.mailer.Send(ctx, mail.Message{
		To:              in.Recipients,
		Subject:         in.Subject,
		Body:            in.Body,
		DocumentContent: doc.Content,
		Attachment: &mail.Attachment{
			Filename:    exp.Artifact.FileName,
			Content:     exp.Artifact.Base64(),
			ContentType: export.ContentType,
		},
	})
	if err != nil {
		return nil, err
	}
	if receipt.Outcome != mail.Delivered {
		return &SendResult{Receipt: receipt, Document: doc}, nil
	}

	// Re-read so edits made while the mail was in flight are kept.
	defer s.locks.Lock(id)()
	if doc, err = s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := model.CheckTransition(doc.Status, model.StatusSent); err != nil {
		return nil, err
	}
	doc.Status = model.StatusSent
	doc.Recipients = receipt.Recipients
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("document sent", zap.String("document_id", id), zap.Strings("to", receipt.Recipients))
	return &SendResult{Receipt: receipt, Document: doc}, nil
}

// Share returns a signed link to the read-only viewer.
func (s *Service) Share(ctx context.Context, id string) (signing.Link, error) {
	if s.signer == nil {
		return signing.Link{}, ErrSharingDisabled
	}
	if _, err := s.Get(ctx, id); err != nil {
		return signing.Link{}, err
	}
	return s.signer.ShareLink(s.origin, id), nil
}

// View resolves a share link. Signature and expiry are checked before the
// store is touched.
func (s *Service) View(ctx context.Context, id, expires, signature string) (*model.Document, error) {
	if s.signer == nil {
		return nil, ErrSharingDisabled
	}
	if err := s.signer.Verify(id, expires, signature); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
