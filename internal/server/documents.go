package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dharsanguruparan/SignDesk/internal/documents"
	"github.com/dharsanguruparan/SignDesk/internal/export"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListDocuments(w, r)
	case http.MethodPost:
		s.handleCreateDocument(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDocumentRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/documents/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		if id == "stats" {
			s.handleStats(w, r)
			return
		}
		s.handleDocument(w, r, id)
		return
	}
	switch parts[1] {
	case "fields":
		s.handleFieldRoute(w, r, id, parts[2:])
		return
	case "gestures":
		s.handleGestures(w, r, id)
		return
	case "send":
		s.handleSend(w, r, id)
		return
	case "pdf":
		s.handlePDF(w, r, id)
		return
	}
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch parts[1] {
	case "status":
		s.handleStatus(w, r, id)
	case "tone":
		s.handleTone(w, r, id)
	case "share":
		s.handleShare(w, r, id)
	case "clauses":
		s.handleClauses(w, r, id)
	case "regenerate":
		s.handleRegenerate(w, r, id)
	case "review":
		s.handleReview(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	var (
		docs []*model.Document
		err  error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		docs, err = s.docs.Search(r.Context(), q)
	} else {
		docs, err = s.docs.List(r.Context())
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	if docs == nil {
		docs = []*model.Document{}
	}
	respondJSON(w, http.StatusOK, docs)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var in documents.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	doc, err := s.docs.Create(r.Context(), in)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.docs.Stats(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		doc, err := s.docs.Get(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, doc)
	case http.MethodPut:
		var in documents.UpdateInput
		if err := decodeJSON(w, r, &in); err != nil {
			s.respondError(w, err)
			return
		}
		doc, err := s.docs.Update(r.Context(), id, in)
		if err != nil {
			s.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, doc)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, id string) {
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	status, err := model.ParseStatus(in.Status)
	if err != nil {
		s.respondError(w, err)
		return
	}
	doc, err := s.docs.SetStatus(r.Context(), id, status)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleTone(w http.ResponseWriter, r *http.Request, id string) {
	var in struct {
		Tone string `json:"tone"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	doc, err := s.docs.AdjustTone(r.Context(), id, in.Tone)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// handlePDF streams the rendered PDF, or with ?format=json returns it as a
// data URI together with the archive link.
func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	exp, err := s.docs.Export(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		respondJSON(w, http.StatusOK, map[string]any{
			"fileName": exp.Artifact.FileName,
			"pages":    exp.Artifact.Pages,
			"dataUri":  exp.Artifact.DataURI(),
			"url":      exp.URL,
		})
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Artifact.Data)))
	w.Header().Set("Content-Disposition", "attachment; filename=\""+exp.Artifact.FileName+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Artifact.Data)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		draft, err := s.docs.Draft(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, draft)
	case http.MethodPost:
		var in documents.SendInput
		if err := decodeJSON(w, r, &in); err != nil {
			s.respondError(w, err)
			return
		}
		res, err := s.docs.Send(r.Context(), id, in)
		if err != nil {
			s.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, id string) {
	link, err := s.docs.Share(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

func (s *Server) handleClauses(w http.ResponseWriter, r *http.Request, id string) {
	var in struct {
		Requirements string `json:"requirements"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	clauses, err := s.docs.LegalClauses(r.Context(), id, in.Requirements)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"clauses": clauses})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, id string) {
	var in documents.RegenerateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, err)
		return
	}
	res, err := s.docs.RegenerateSection(r.Context(), id, in)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request, id string) {
	feedback, err := s.docs.Review(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"feedback": feedback})
}
