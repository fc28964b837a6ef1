package server

import (
	"net/http"
	"strconv"

	"github.com/dharsanguruparan/SignDesk/internal/capture"
	"github.com/dharsanguruparan/SignDesk/internal/editor"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

// handleFieldRoute serves /documents/{id}/fields[/{fid}[/signature]].
func (s *Server) handleFieldRoute(w http.ResponseWriter, r *http.Request, docID string, rest []string) {
	switch len(rest) {
	case 0:
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleAddField(w, r, docID)
		return
	case 1, 2:
	default:
		http.NotFound(w, r)
		return
	}
	fieldID, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid field id", http.StatusBadRequest)
		return
	}
	if len(rest) == 2 {
		if rest[1] != "signature" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleCapture(w, r, docID, fieldID)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		s.handleUpdateField(w, r, docID, fieldID)
	case http.MethodDelete:
		if err := s.docs.Editor(docID).DeleteField(r.Context(), fieldID); err != nil {
			s.respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type addFieldRequest struct {
	Type string `json:"type"`
	// Drop is the canvas point the field was dropped on; nil places the
	// field at the default position.
	Drop *model.Point `json:"drop,omitempty"`
}

func (s *Server) handleAddField(w http.ResponseWriter, r *http.Request, docID string) {
	var in addFieldRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	t, err := model.ParseFieldType(in.Type)
	if err != nil {
		s.respondError(w, err)
		return
	}
	field, err := s.docs.Editor(docID).AddField(r.Context(), t, in.Drop)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, field)
}

// handleUpdateField applies label, signer and position changes in one save.
func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request, docID string, fieldID int64) {
	var in editor.FieldUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	field, err := s.docs.Editor(docID).UpdateField(r.Context(), fieldID, in)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, field)
}

type gestureResponse struct {
	Results  []editor.Result `json:"results"`
	Document *model.Document `json:"document"`
}

// handleGestures replays pointer events through a fresh editor session, so a
// gesture must start and finish within one request.
func (s *Server) handleGestures(w http.ResponseWriter, r *http.Request, docID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		Events []editor.Event `json:"events"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	results, err := s.docs.Editor(docID).Replay(r.Context(), in.Events)
	if err != nil {
		s.respondError(w, err)
		return
	}
	doc, err := s.docs.Get(r.Context(), docID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if results == nil {
		results = []editor.Result{}
	}
	respondJSON(w, http.StatusOK, gestureResponse{Results: results, Document: doc})
}

// handleCapture renders the submitted capture and attaches it to the field.
// An empty request against a date field uses today's date.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request, docID string, fieldID int64) {
	var in capture.Request
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	doc, err := s.docs.Get(r.Context(), docID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	field, ok := doc.Field(fieldID)
	if !ok {
		s.respondError(w, model.ErrFieldNotFound)
		return
	}

	session := s.docs.Capture(docID, fieldID)
	if field.Type == model.FieldDate && in.Text == "" && len(in.Strokes) == 0 {
		err = session.Prefill(s.now().Format(editor.DateLayout))
	} else {
		session.Pad, err = capture.Render(in)
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	res, err := session.Save(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.metrics.SignatureCaptured(string(field.Type))
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSignaturePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in capture.Request
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	pad, err := capture.Render(in)
	if err != nil {
		s.respondError(w, err)
		return
	}
	session := capture.NewSession(nil, nil, s.logger)
	session.Pad = pad
	res, err := session.Save(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
