// Package server exposes the analyzer over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"go.uber.org/zap"

	"github.com/v0xg/bddprobe/internal/cache"
	"github.com/v0xg/bddprobe/internal/detect"
	"github.com/v0xg/bddprobe/internal/driver"
	"github.com/v0xg/bddprobe/internal/featurefile"
)

// Analyzer runs page analyses: the full simulating kind and the cheap
// classification-only scan.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (*detect.PageAnalysis, error)
	QuickScan(ctx context.Context, url string) (*detect.QuickScanResult, error)
}

// FeatureGenerator renders feature text for an analysis.
type FeatureGenerator interface {
	Generate(ctx context.Context, analysis *detect.PageAnalysis) (string, error)
}

// Server handles analysis requests over a single shared browser. Analyses
// run one at a time; the analysis cache absorbs repeated requests for the
// same URL.
type Server struct {
	analyzer  Analyzer
	generator FeatureGenerator
	log       *zap.Logger

	// featureDir is where generated features are persisted and served from.
	// Empty disables persistence and the download endpoint returns 404s.
	featureDir string

	mu       sync.Mutex
	analyses *cache.Cache[*detect.PageAnalysis]
}

// New builds a Server. featureDir may be empty to keep features in-memory
// only.
func New(analyzer Analyzer, generator FeatureGenerator, featureDir string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		analyzer:   analyzer,
		generator:  generator,
		featureDir: featureDir,
		log:        log,
		analyses:   cache.New[*detect.PageAnalysis](16),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	requestLogger := httplog.NewLogger("bddprobe", httplog.Options{
		Concise: true,
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(httplog.RequestLogger(requestLogger))

	r.Get("/health", s.handleHealth)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/quick-scan", s.handleQuickScan)
	r.Post("/generate", s.handleGenerate)
	r.Get("/feature/{filename}", s.handleFeatureDownload)
	return r
}

type analyzeRequest struct {
	URL     string `json:"url"`
	Refresh bool   `json:"refresh,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	analysis, err := s.analyze(r.Context(), req.URL, req.Refresh)
	if err != nil {
		s.writeAnalyzeError(w, req.URL, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleQuickScan(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	// Classification only; cheap enough that results are never cached.
	s.mu.Lock()
	result, err := s.analyzer.QuickScan(r.Context(), req.URL)
	s.mu.Unlock()
	if err != nil {
		s.writeAnalyzeError(w, req.URL, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFeatureDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	name = strings.TrimSuffix(name, ".feature")
	if s.featureDir == "" || name == "" || name != featurefile.BaseName(name) {
		http.Error(w, "feature file not found", http.StatusNotFound)
		return
	}

	path := filepath.Join(s.featureDir, name+".feature")
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, "feature file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.feature"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type generateResponse struct {
	Analysis *detect.PageAnalysis `json:"analysis"`
	Feature  string               `json:"feature"`

	// File is the name the persisted feature can be downloaded under via
	// GET /feature/{filename}, when persistence is configured.
	File string `json:"file,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	analysis, err := s.analyze(r.Context(), req.URL, req.Refresh)
	if err != nil {
		s.writeAnalyzeError(w, req.URL, err)
		return
	}

	feature, err := s.generator.Generate(r.Context(), analysis)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	resp := generateResponse{Analysis: analysis, Feature: feature}
	if s.featureDir != "" {
		writer := &featurefile.Writer{Dir: s.featureDir}
		if res, werr := writer.Write(analysis, feature); werr != nil {
			// Persistence failure downgrades to in-memory delivery.
			s.log.Warn("could not persist feature file",
				zap.String("url", req.URL), zap.Error(werr))
		} else {
			resp.File = filepath.Base(res.FeaturePath)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) analyze(ctx context.Context, url string, refresh bool) (*detect.PageAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !refresh {
		if analysis, ok := s.analyses.Get(url); ok {
			s.log.Debug("analysis served from cache", zap.String("url", url))
			return analysis, nil
		}
	}

	analysis, err := s.analyzer.Analyze(ctx, url)
	if err != nil {
		return nil, err
	}
	s.analyses.Set(url, analysis)
	return analysis, nil
}

func (s *Server) writeAnalyzeError(w http.ResponseWriter, url string, err error) {
	var navErr *driver.NavigationError
	status := http.StatusInternalServerError
	if errors.As(err, &navErr) {
		status = http.StatusBadGateway
	}
	s.log.Error("analysis failed", zap.String("url", url), zap.Error(err))
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (analyzeRequest, bool) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return req, false
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
