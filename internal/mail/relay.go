package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ProviderError is a non-2xx answer from the relay API.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mail provider error: %d - %s", e.Status, e.Message)
}

// Is maps permission and validation rejections onto ErrNeedsConfiguration.
func (e *ProviderError) Is(target error) bool {
	return target == ErrNeedsConfiguration && (e.Status == http.StatusForbidden || e.Status == http.StatusUnprocessableEntity)
}

// ResendRelay sends envelopes through the Resend API client.
type ResendRelay struct {
	client  *resend.Client
	from    string
	replyTo string
}

// NewResendRelay builds a relay against baseURL, the API root the client
// resolves "emails" against. httpClient may be nil.
func NewResendRelay(baseURL, apiKey, from, replyTo string, httpClient *http.Client) (*ResendRelay, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}
	next := httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	recording := *httpClient
	recording.Transport = statusRecorder{next: next}

	client := resend.NewCustomClient(&recording, apiKey)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse mail endpoint: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendRelay{client: client, from: from, replyTo: replyTo}, nil
}

func (r *ResendRelay) Deliver(ctx context.Context, env Envelope) (string, error) {
	req := &resend.SendEmailRequest{
		From:    r.from,
		To:      env.To,
		Subject: env.Subject,
		Html:    env.HTML,
		Text:    env.Text,
		ReplyTo: r.replyTo,
	}
	if a := env.Attachment; a != nil {
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return "", fmt.Errorf("decode attachment %s: %w", a.Filename, err)
		}
		req.Attachments = []*resend.Attachment{{Content: content, Filename: a.Filename, ContentType: a.ContentType}}
	}

	var status int
	sent, err := r.client.Emails.SendWithContext(context.WithValue(ctx, statusKey{}, &status), req)
	if err != nil {
		if status != 0 && (status < 200 || status > 299) {
			return "", &ProviderError{Status: status, Message: strings.TrimPrefix(err.Error(), "[ERROR]: ")}
		}
		return "", fmt.Errorf("send request: %w", err)
	}
	return sent.Id, nil
}

type statusKey struct{}

// statusRecorder copies each response status into the *int stored under
// statusKey. Client errors carry only the provider message.
type statusRecorder struct {
	next http.RoundTripper
}

func (t statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err == nil {
		if status, ok := req.Context().Value(statusKey{}).(*int); ok {
			*status = resp.StatusCode
		}
	}
	return resp, err
}

// MockRelay logs envelopes instead of sending them. It is used when no API key
// is configured and always reports delivery.
type MockRelay struct {
	logger *zap.Logger
}

func NewMockRelay(logger *zap.Logger) *MockRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockRelay{logger: logger}
}

func (m *MockRelay) Deliver(_ context.Context, env Envelope) (string, error) {
	id := "mock-" + uuid.NewString()
	m.logger.Info("mock email relay: message not sent, configure an API key to deliver",
		zap.Strings("to", env.To),
		zap.String("subject", env.Subject),
		zap.Bool("attachment", env.Attachment != nil),
		zap.String("message_id", id))
	return id, nil
}

// NewRelay picks the Resend relay when apiKey is set and the mock otherwise.
func NewRelay(endpoint, apiKey, from, replyTo string, logger *zap.Logger) (Relay, error) {
	if apiKey == "" {
		return NewMockRelay(logger), nil
	}
	relay, err := NewResendRelay(endpoint, apiKey, from, replyTo, nil)
	if err != nil {
		return nil, err
	}
	return relay, nil
}
