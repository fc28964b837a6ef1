package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dharsanguruparan/SignDesk/internal/artifacts"
	"github.com/dharsanguruparan/SignDesk/internal/intake"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

const (
	maxFilesPerUpload = 10
	maxAssetSize      = 5 << 20
	assetPrefix       = "logos"
)

var errNotImage = errors.New("asset must be an image")

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if s.intake == nil {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		files, err := s.intake.List(r.Context())
		if err != nil {
			s.respondError(w, err)
			return
		}
		if files == nil {
			files = []*model.FileRecord{}
		}
		respondJSON(w, http.StatusOK, files)
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUpload accepts any number of "file" parts (up to maxFilesPerUpload).
// Each file is judged on its own; the response lists every record.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxFileSize*maxFilesPerUpload+1<<20)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	var uploads []intake.Upload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		if len(uploads) == maxFilesPerUpload {
			part.Close()
			http.Error(w, fmt.Sprintf("at most %d files per upload", maxFilesPerUpload), http.StatusBadRequest)
			return
		}
		up, err := readPart(part, s.limits.MaxFileSize)
		if err != nil {
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		uploads = append(uploads, up)
	}
	if len(uploads) == 0 {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	for _, u := range uploads {
		s.metrics.ObserveUpload(len(u.Data))
	}
	records, err := s.intake.Upload(r.Context(), uploads)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, records)
}

// readPart buffers one part. At most limit+1 bytes are read so intake can
// still reject an oversized file by its size.
func readPart(part *multipart.Part, limit int64) (intake.Upload, error) {
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return intake.Upload{}, err
	}
	contentType := part.Header.Get("Content-Type")
	if contentType == "" && len(data) > 0 {
		contentType = http.DetectContentType(data)
	}
	return intake.Upload{Name: part.FileName(), ContentType: contentType, Data: data}, nil
}

func (s *Server) handleUploadRoute(w http.ResponseWriter, r *http.Request) {
	if s.intake == nil {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/uploads/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		rec, err := s.intake.Get(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, rec)
	case len(parts) == 2 && parts[1] == "analyze" && r.Method == http.MethodPost:
		rec, err := s.intake.Reanalyze(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, rec)
	case len(parts) <= 2:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// handleAssets stores an image (a logo for the email layout, typically) and
// returns where it can be fetched.
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.assets == nil {
		http.NotFound(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAssetSize+1<<20)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	var up *intake.Upload
	for up == nil {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		u, err := readPart(part, maxAssetSize)
		if err != nil {
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		up = &u
	}
	if up == nil || len(up.Data) == 0 {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	if len(up.Data) > maxAssetSize {
		s.respondError(w, fmt.Errorf("%w: %d bytes", intake.ErrTooLarge, len(up.Data)))
		return
	}
	if !strings.HasPrefix(up.ContentType, "image/") {
		http.Error(w, errNotImage.Error(), http.StatusBadRequest)
		return
	}

	key := artifacts.NewKey(assetPrefix, up.Name)
	if err := s.assets.Put(r.Context(), artifacts.KindAsset, key, up.Data, up.ContentType); err != nil {
		s.respondError(w, err)
		return
	}
	url, err := s.assets.PresignURL(r.Context(), artifacts.KindAsset, key)
	if err != nil || url == "" {
		url = "/assets/" + key
	}
	respondJSON(w, http.StatusCreated, map[string]string{"key": key, "url": url})
}

func (s *Server) handleAssetGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/assets/")
	if key == "" || s.assets == nil {
		http.NotFound(w, r)
		return
	}
	obj, err := s.assets.Get(r.Context(), artifacts.KindAsset, key)
	if err != nil {
		s.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}
