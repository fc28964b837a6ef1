// Package server exposes SignDesk over HTTP. Routing follows the plain
// net/http ServeMux with prefix handlers that split the remaining path.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/SignDesk/internal/agent"
	"github.com/dharsanguruparan/SignDesk/internal/artifacts"
	"github.com/dharsanguruparan/SignDesk/internal/config"
	"github.com/dharsanguruparan/SignDesk/internal/documents"
	"github.com/dharsanguruparan/SignDesk/internal/intake"
	"github.com/dharsanguruparan/SignDesk/internal/metrics"
	"github.com/dharsanguruparan/SignDesk/internal/processing"
	"github.com/dharsanguruparan/SignDesk/internal/signing"
)

// maxJSONBody bounds request bodies other than uploads. Stroke lists and
// gesture replays are the largest JSON payloads.
const maxJSONBody = 4 << 20

// Deps are the services the HTTP layer drives. Intake, Assets, Metrics and
// Processor are optional.
type Deps struct {
	Documents *documents.Service
	Intake    *intake.Service
	Assets    artifacts.Store
	Metrics   *metrics.Collector
	// Processor is started once by Serve when uploads are processed in-process.
	Processor *processing.Processor
	Logger    *zap.Logger
}

// Server hosts the SignDesk HTTP API.
type Server struct {
	cfg       config.ServerConfig
	limits    config.IntakeConfig
	docs      *documents.Service
	intake    *intake.Service
	assets    artifacts.Store
	metrics   *metrics.Collector
	processor *processing.Processor
	logger    *zap.Logger
	now       func() time.Time

	once    sync.Once
	handler http.Handler
}

func New(cfg *config.Config, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := d.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}
	s := &Server{
		cfg:       cfg.Server,
		limits:    cfg.Intake,
		docs:      d.Documents,
		intake:    d.Intake,
		assets:    d.Assets,
		metrics:   collector,
		processor: d.Processor,
		logger:    logger.With(zap.String("component", "http")),
		now:       time.Now,
	}
	s.handler = corsMiddleware(s.requestMiddleware(s.routes()))
	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve launches the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.once.Do(func() {
		if s.processor != nil {
			s.processor.Start(ctx)
		}
	})
	httpServer := &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", zap.String("address", s.cfg.Address))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/templates", s.handleTemplates)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentRoute)
	mux.HandleFunc("/signatures/preview", s.handleSignaturePreview)
	mux.HandleFunc(signing.ViewPath, s.handleView)
	mux.HandleFunc("/uploads", s.handleUploads)
	mux.HandleFunc("/uploads/", s.handleUploadRoute)
	mux.HandleFunc("/assets", s.handleAssets)
	mux.HandleFunc("/assets/", s.handleAssetGet)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, agent.Templates())
}

var errBadRequest = errors.New("invalid request body")

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		zap.L().Warn("encode json failed", zap.Error(err))
	}
}
