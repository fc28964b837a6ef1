package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/agent"
	"github.com/dharsanguruparan/SignDesk/internal/artifacts"
	"github.com/dharsanguruparan/SignDesk/internal/capture"
	"github.com/dharsanguruparan/SignDesk/internal/documents"
	"github.com/dharsanguruparan/SignDesk/internal/editor"
	"github.com/dharsanguruparan/SignDesk/internal/intake"
	"github.com/dharsanguruparan/SignDesk/internal/mail"
	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/signing"
	"github.com/dharsanguruparan/SignDesk/internal/store"
)

// dashboardPath is where clients go when a document no longer exists.
const dashboardPath = "/dashboard"

type errorBody struct {
	Error    string `json:"error"`
	Details  string `json:"details,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

var badRequest = []error{
	errBadRequest,
	model.ErrInvalidStatus,
	model.ErrInvalidFieldType,
	model.ErrInvalidSigner,
	model.ErrDuplicateField,
	agent.ErrUnknownTone,
	agent.ErrMissingDocumentType,
	documents.ErrUnknownTemplate,
	documents.ErrSectionNotFound,
	mail.ErrNoRecipients,
	capture.ErrWrongMode,
	capture.ErrUnknownStyle,
	capture.ErrUnknownMode,
	capture.ErrEmptyCapture,
	editor.ErrNoGesture,
	editor.ErrUnknownEvent,
	intake.ErrUnsupportedType,
	intake.ErrTooLarge,
	intake.ErrEmpty,
}

var unavailable = []error{
	documents.ErrNoWriter,
	documents.ErrSharingDisabled,
	store.ErrUnavailable,
}

// respondError maps a service error onto a status code and a JSON body of
// the form {error, details}.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status, msg := classify(err)
	body := errorBody{Error: msg, Details: err.Error()}
	if errors.Is(err, model.ErrDocumentNotFound) {
		body.Redirect = dashboardPath
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, body)
}

func classify(err error) (int, string) {
	var callErr *agent.CallError
	switch {
	case errors.Is(err, model.ErrDocumentNotFound):
		return http.StatusNotFound, "Document not found"
	case errors.Is(err, model.ErrFieldNotFound):
		return http.StatusNotFound, "Signature field not found"
	case errors.Is(err, intake.ErrNotFound), errors.Is(err, artifacts.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "Status change not allowed"
	case errors.Is(err, intake.ErrNotReady):
		return http.StatusConflict, "File is still processing"
	case errors.Is(err, signing.ErrExpired):
		return http.StatusUnauthorized, "Link expired"
	case errors.Is(err, signing.ErrBadSignature):
		return http.StatusForbidden, "Invalid link"
	case errors.Is(err, agent.ErrAgentNotConfigured):
		return http.StatusServiceUnavailable, "AI agent not configured"
	case errors.As(err, &callErr):
		return http.StatusBadGateway, "AI agent request failed"
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest, "Invalid request"
		}
	}
	for _, target := range unavailable {
		if errors.Is(err, target) {
			return http.StatusServiceUnavailable, "Service not configured"
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}
