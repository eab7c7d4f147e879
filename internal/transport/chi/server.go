package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tagsearch/internal/dataset"
	"github.com/kailas-cloud/tagsearch/internal/domain"
	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
	domds "github.com/kailas-cloud/tagsearch/internal/domain/dataset"
	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/filter"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
	"github.com/kailas-cloud/tagsearch/internal/metrics"
	healthuc "github.com/kailas-cloud/tagsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/tagsearch/internal/usecase/search"
)

// maxBodyBytes caps JSON request bodies (tag snapshots, product batches).
const maxBodyBytes = 64 << 20

// Searcher answers product queries.
type Searcher interface {
	SemanticSearch(ctx context.Context, req searchuc.Request) (domproduct.Response, error)
	KeywordSearch(ctx context.Context, req searchuc.Request) (domproduct.Response, error)
	Typeahead(ctx context.Context, text string) ([]string, error)
}

// TagRecognizer maps query text to tags.
type TagRecognizer interface {
	Recognize(ctx context.Context, query string) ([]domtag.Recognized, error)
}

// TagIndexer builds the tag vocabulary from a snapshot.
type TagIndexer interface {
	IndexTags(ctx context.Context, source string, snap domds.Snapshot) (dombatch.Outcome, error)
}

// ProductLoader upserts products.
type ProductLoader interface {
	Upsert(ctx context.Context, items []domproduct.Product) []dombatch.Result
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search, tag and catalog API.
type Server struct {
	search        Searcher
	recognizer    TagRecognizer
	tags          TagIndexer
	products      ProductLoader
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	recognizer TagRecognizer,
	tags TagIndexer,
	products ProductLoader,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:     search,
		recognizer: recognizer,
		tags:       tags,
		products:   products,
		health:     health,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, ErrorCodeBackendUnavailable),
		sentinelHandler(domain.ErrBackendQuery, http.StatusBadGateway, ErrorCodeBackendQueryError),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/semantic-search", s.SemanticSearch)
		r.Get("/products/search", s.KeywordSearch)
		r.Get("/products/typeahead", s.Typeahead)
		r.Post("/products", s.UpsertProducts)
		r.Get("/tags/recognize", s.RecognizeTags)
		r.Post("/tags/index", s.IndexTags)
	})
}

// SemanticSearch handles GET /api/v1/products/semantic-search.
func (s *Server) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.searchRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.search.SemanticSearch(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	// Empty for the keyword fallback.
	w.Header().Set(metrics.StageHeader, resp.Stage)
	writeJSON(w, http.StatusOK, resp)
}

// KeywordSearch handles GET /api/v1/products/search.
func (s *Server) KeywordSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.searchRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.search.KeywordSearch(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Typeahead handles GET /api/v1/products/typeahead.
func (s *Server) Typeahead(w http.ResponseWriter, r *http.Request) {
	var q string
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter q: "+err.Error())
		return
	}
	suggestions, err := s.search.Typeahead(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TypeaheadResponse{Query: q, Suggestions: suggestions})
}

// RecognizeTags handles GET /api/v1/tags/recognize.
func (s *Server) RecognizeTags(w http.ResponseWriter, r *http.Request) {
	var q string
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter q: "+err.Error())
		return
	}
	tags, err := s.recognizer.Recognize(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecognizeResponse{Query: q, Tags: tags})
}

// IndexTags handles POST /api/v1/tags/index. The body is a JSON array of catalog records.
func (s *Server) IndexTags(w http.ResponseWriter, r *http.Request) {
	records, ok := decodeRecords(w, r)
	if !ok {
		return
	}
	outcome, err := s.tags.IndexTags(r.Context(), "api", dataset.Snapshot(records))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{Outcome: outcome})
}

// UpsertProducts handles POST /api/v1/products. The body is a JSON array of catalog records.
func (s *Server) UpsertProducts(w http.ResponseWriter, r *http.Request) {
	records, ok := decodeRecords(w, r)
	if !ok {
		return
	}
	results := s.products.Upsert(r.Context(), dataset.Products(records))

	items := make([]BatchResultItem, len(results))
	for i, res := range results {
		items[i] = BatchResultItem{ID: res.ID(), Status: string(res.Status())}
		if res.Err() != nil {
			items[i].Error = safeDomainMessage(res.Err())
		}
	}
	writeJSON(w, http.StatusOK, IndexResponse{Outcome: dombatch.Summarize(results), Items: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}

// searchRequest binds q, count, page and attributes.* filters.
func (s *Server) searchRequest(w http.ResponseWriter, r *http.Request) (searchuc.Request, bool) {
	params := r.URL.Query()
	var req searchuc.Request

	if err := runtime.BindQueryParameter("form", true, false, "q", params, &req.Query); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter q: "+err.Error())
		return req, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "count", params, &req.Count); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter count: "+err.Error())
		return req, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "page", params, &req.Page); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter page: "+err.Error())
		return req, false
	}

	attrs := make(map[string]string)
	for key, values := range params {
		if !strings.HasPrefix(key, filter.AttributePrefix) || len(values) == 0 {
			continue
		}
		attrs[key] = values[0]
	}
	filters, err := filter.NewAttributes(attrs)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return req, false
	}
	req.Filters = filters
	return req, true
}

func decodeRecords(w http.ResponseWriter, r *http.Request) ([]dataset.Record, bool) {
	var records []dataset.Record
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&records); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	return records, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrBackendUnavailable,
		domain.ErrBackendQuery,
		domain.ErrPartialIndexFailure,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
