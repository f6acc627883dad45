package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/artifacts"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/audit"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/observability"
)

const maxPageSize = 500

// Server exposes verification reports and chain pages over HTTP.
type Server struct {
	audit   *audit.Service
	store   artifacts.Store
	obs     *observability.Provider
	limiter Limiter
	logger  *slog.Logger
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

func WithObservability(p *observability.Provider) Option { return func(s *Server) { s.obs = p } }

// WithLimiter enables per-client rate limiting.
func WithLimiter(l Limiter) Option { return func(s *Server) { s.limiter = l } }

// NewServer builds a server. store receives archived export bundles and may be nil,
// in which case export is unavailable.
func NewServer(auditSvc *audit.Service, store artifacts.Store, opts ...Option) *Server {
	s := &Server{
		audit:  auditSvc,
		store:  store,
		obs:    observability.Disabled(),
		logger: slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	if s.limiter != nil {
		r.Use(RateLimit(s.limiter, s.logger))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, r, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "The HTTP method is not supported for this endpoint")
	})

	r.Get("/health", s.health)
	r.Route("/api/v1/ledger", func(r chi.Router) {
		r.Get("/verify", s.verifyChain)
		r.Get("/blocks", s.listBlocks)
		r.Get("/blocks/{index}", s.getBlock)
		r.Get("/entities/{entityType}/{entityID}/verify", s.verifyEntity)
		r.Post("/export", s.export)
	})
	return r
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.Int("http.status_code", ww.Status()),
		}
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			attrs = append(attrs, attribute.String("http.route", rc.RoutePattern()))
		}
		s.obs.RecordRequest(r.Context(), attrs...)
		s.obs.RecordDuration(r.Context(), time.Since(start), attrs...)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if _, err := s.audit.Chain().Count(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "error", err)
		WriteError(w, r, http.StatusServiceUnavailable, "ledger store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) verifyChain(w http.ResponseWriter, r *http.Request) {
	report, err := s.audit.VerifyChain(r.Context())
	if err != nil {
		writeInternal(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type blockPage struct {
	From   int64          `json:"from"`
	Limit  int            `json:"limit"`
	Total  int64          `json:"total"`
	Blocks []ledger.Block `json:"blocks"`
}

func (s *Server) listBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from int64
	if v := q.Get("from"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeBadRequest(w, r, "from must be a non-negative integer")
			return
		}
		from = n
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			writeBadRequest(w, r, "limit must be between 1 and "+strconv.Itoa(maxPageSize))
			return
		}
		limit = n
	}

	blocks, err := s.audit.Chain().BlocksRange(r.Context(), from, limit)
	if err != nil {
		writeInternal(w, r, s.logger, err)
		return
	}
	total, err := s.audit.Chain().Count(r.Context())
	if err != nil {
		writeInternal(w, r, s.logger, err)
		return
	}
	if blocks == nil {
		blocks = []ledger.Block{}
	}
	writeJSON(w, http.StatusOK, blockPage{From: from, Limit: limit, Total: total, Blocks: blocks})
}

func (s *Server) getBlock(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseInt(chi.URLParam(r, "index"), 10, 64)
	if err != nil || index < 0 {
		writeBadRequest(w, r, "index must be a non-negative integer")
		return
	}
	block, err := s.audit.Chain().BlockByIndex(r.Context(), index)
	if errors.Is(err, ledger.ErrNotFound) {
		writeNotFound(w, r, "block "+strconv.FormatInt(index, 10)+" does not exist")
		return
	}
	if err != nil {
		writeInternal(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) verifyEntity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID := chi.URLParam(r, "entityID")

	report, err := s.audit.VerifyEntity(r.Context(), entityType, entityID)
	switch {
	case errors.Is(err, audit.ErrUnknownEntityType):
		writeNotFound(w, r, "unknown entity type "+strconv.Quote(entityType))
	case errors.Is(err, ledger.ErrNotFound):
		writeNotFound(w, r, entityType+" "+strconv.Quote(entityID)+" does not exist")
	case err != nil:
		writeInternal(w, r, s.logger, err)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

type exportResult struct {
	BundleID    string `json:"bundleId"`
	Ref         string `json:"ref"`
	TotalBlocks int    `json:"totalBlocks"`
	ChainHead   string `json:"chainHead"`
	Valid       bool   `json:"valid"`
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "artifact storage is not configured")
		return
	}
	bundle, err := s.audit.Export(r.Context())
	if errors.Is(err, audit.ErrEmptyChain) {
		WriteError(w, r, http.StatusConflict, "the ledger has no blocks to export")
		return
	}
	if err != nil {
		writeInternal(w, r, s.logger, err)
		return
	}
	ref, err := audit.Archive(r.Context(), s.store, bundle)
	if err != nil {
		writeInternal(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, exportResult{
		BundleID:    bundle.BundleID,
		Ref:         ref,
		TotalBlocks: bundle.TotalBlocks,
		ChainHead:   bundle.ChainHead,
		Valid:       bundle.Report.Valid,
	})
}
