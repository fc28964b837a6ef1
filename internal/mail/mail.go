// Package mail formats document emails and hands them to a relay. Delivery
// failures never surface as hard errors: the receipt tells the caller whether
// the message went out, needs provider configuration, or should fall back to
// the user's own mail client.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Outcome of a send attempt.
type Outcome string

const (
	Delivered          Outcome = "delivered"
	NeedsConfiguration Outcome = "needs_configuration"
	Fallback           Outcome = "fallback"
)

var (
	ErrNoRecipients = errors.New("at least one recipient is required")
	// ErrNeedsConfiguration matches provider errors caused by an unverified
	// sending domain or a key without permission.
	ErrNeedsConfiguration = errors.New("mail provider needs configuration")
)

// contentSeparator sits between the message body and the document text in the
// plain-text part and in mailto fallbacks.
const contentSeparator = "\n\n--- Document Content ---\n"

// Attachment is a base64-encoded file.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// Message is what callers want to send.
type Message struct {
	To              []string    `json:"to"`
	Subject         string      `json:"subject"`
	Body            string      `json:"body"`
	DocumentContent string      `json:"documentContent"`
	Attachment      *Attachment `json:"attachment,omitempty"`
}

// FullText is the plain-text part: body, separator, document content.
func (m Message) FullText() string {
	return m.Body + contentSeparator + m.DocumentContent
}

// Envelope is the relay request.
type Envelope struct {
	To         []string
	Subject    string
	HTML       string
	Text       string
	Attachment *Attachment
}

// Relay delivers an envelope and returns the provider message id.
type Relay interface {
	Deliver(ctx context.Context, env Envelope) (string, error)
}

// Receipt reports the outcome of Send.
type Receipt struct {
	Outcome    Outcome  `json:"outcome"`
	MessageID  string   `json:"messageId,omitempty"`
	Recipients []string `json:"recipients"`
	// Message explains a non-delivery in words a user can act on.
	Message string `json:"message,omitempty"`
	// MailtoURL pre-fills the user's mail client; set unless delivered.
	MailtoURL string `json:"mailtoUrl,omitempty"`
}

// Service formats and sends document emails.
type Service struct {
	relay  Relay
	layout Layout
	logger *zap.Logger
}

// NewService wires a relay. layout supplies branding for the HTML part.
func NewService(relay Relay, layout Layout, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{relay: relay, layout: layout, logger: logger.With(zap.String("component", "mail"))}
}

// Send makes exactly one delivery attempt.
func (s *Service) Send(ctx context.Context, msg Message) (Receipt, error) {
	to := cleanRecipients(msg.To)
	if len(to) == 0 {
		return Receipt{}, ErrNoRecipients
	}
	msg.To = to

	html, err := s.layout.Render(msg.Body, msg.DocumentContent)
	if err != nil {
		return Receipt{}, err
	}
	env := Envelope{To: to, Subject: msg.Subject, HTML: html, Text: msg.FullText(), Attachment: msg.Attachment}

	id, err := s.relay.Deliver(ctx, env)
	if err == nil {
		s.logger.Info("email delivered", zap.Strings("to", to), zap.String("message_id", id))
		return Receipt{Outcome: Delivered, MessageID: id, Recipients: to}, nil
	}

	receipt := Receipt{Recipients: to, MailtoURL: MailtoURL(to, msg.Subject, msg.FullText())}
	if errors.Is(err, ErrNeedsConfiguration) {
		receipt.Outcome = NeedsConfiguration
		receipt.Message = "Domain verification required: verify the sending domain with the mail provider before sending emails."
		s.logger.Warn("mail provider rejected sender", zap.Error(err))
		return receipt, nil
	}
	receipt.Outcome = Fallback
	receipt.Message = fmt.Sprintf("Failed to send email: %v", err)
	s.logger.Warn("email delivery failed, falling back to mail client", zap.Error(err))
	return receipt, nil
}

// DefaultSubject is the subject used when the caller gives none.
func DefaultSubject(title string) string {
	return title + " - Ready for Review"
}

// SplitRecipients parses a comma-separated address list.
func SplitRecipients(list string) []string {
	return cleanRecipients(strings.Split(list, ","))
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, addr := range in {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
