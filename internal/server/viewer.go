package server

import (
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/capture"
	"github.com/dharsanguruparan/SignDesk/internal/model"
	"github.com/dharsanguruparan/SignDesk/internal/signing"
)

var viewTemplate = template.Must(template.New("view").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
      body { font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; background: #f8fafc; color: #1f2937; margin: 0; }
      .page { position: relative; max-width: 816px; margin: 24px auto; background: white; padding: 48px; box-shadow: 0 1px 3px rgba(0,0,0,.1); }
      .content { white-space: pre-wrap; font-size: 14px; line-height: 1.7; }
      .field { position: absolute; border: 2px dashed #3b82f6; font-size: 11px; box-sizing: border-box; overflow: hidden; }
      .field.client { border-color: #10b981; }
      .field.filled { border-style: solid; }
      .field img { width: 100%; height: 100%; object-fit: contain; }
      .badge { display: inline-block; padding: 2px 8px; border-radius: 9999px; background: #e5e7eb; font-size: 12px; }
    </style>
  </head>
  <body>
    <div class="page">
      <h1>{{.Title}}</h1>
      <p><span class="badge">{{.Badge}}</span></p>
      <div class="content">{{.Content}}</div>
      {{range .Fields}}
      <div class="field{{if .Client}} client{{end}}{{if .Filled}} filled{{end}}" style="left: {{.X}}px; top: {{.Y}}px; width: {{.Width}}px; height: {{.Height}}px;">
        {{if .Image}}<img src="{{.Image}}" alt="{{.Label}}">{{else if .Text}}{{.Text}}{{else}}{{.Label}}{{end}}
      </div>
      {{end}}
    </div>
  </body>
</html>
`))

type viewField struct {
	X, Y, Width, Height float64
	Label               string
	Client              bool
	Filled              bool
	Image               template.URL
	Text                string
}

type viewPage struct {
	Title   string
	Badge   string
	Content string
	Fields  []viewField
}

func newViewPage(doc *model.Document) viewPage {
	page := viewPage{Title: doc.Title, Badge: doc.Status.Badge(), Content: doc.Content}
	for _, f := range doc.SignatureFields {
		vf := viewField{
			X: f.X, Y: f.Y, Width: f.Width, Height: f.Height,
			Label:  f.Label,
			Client: f.Signer == model.SignerClient,
			Filled: f.Filled,
		}
		if f.Filled {
			// Only PNG data URIs produced by capture are trusted as image sources.
			if _, ok := capture.DecodePNGDataURI(f.SignatureData); ok {
				vf.Image = template.URL(f.SignatureData)
			} else {
				vf.Text = f.SignatureData
			}
		}
		page.Fields = append(page.Fields, vf)
	}
	return page
}

// handleView is the read-only viewer behind share links. It renders HTML, or
// JSON when the client asks for it.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, signing.ViewPath), "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	doc, err := s.docs.View(r.Context(), id, q.Get("expires"), q.Get("signature"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		respondJSON(w, http.StatusOK, doc)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := viewTemplate.Execute(w, newViewPage(doc)); err != nil {
		s.logger.Warn("render viewer failed", zap.String("document_id", id), zap.Error(err))
	}
}
