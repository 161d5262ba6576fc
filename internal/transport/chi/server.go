// Package chi exposes the HTTP API: faceted chair and estate search, the
// polygon draw-to-search flow, purchases, and CSV ingest.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sumika-cloud/sumika/internal/db/postgres"
	"github.com/sumika-cloud/sumika/internal/domain"
	"github.com/sumika-cloud/sumika/internal/domain/condition"
	"github.com/sumika-cloud/sumika/internal/domain/geo"
	chairuc "github.com/sumika-cloud/sumika/internal/usecase/chair"
	estateuc "github.com/sumika-cloud/sumika/internal/usecase/estate"
	ingestuc "github.com/sumika-cloud/sumika/internal/usecase/ingest"
)

const (
	codeBadRequest    = "bad_request"
	codeNotFound      = "not_found"
	codeInternalError = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Pinger checks database connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the usecase services to the HTTP routes.
type Server struct {
	chairs        *chairuc.Service
	estates       *estateuc.Service
	ingest        *ingestuc.Service
	chairCatalog  *condition.ChairCatalog
	estateCatalog *condition.EstateCatalog
	pinger        Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	chairs *chairuc.Service,
	estates *estateuc.Service,
	ingest *ingestuc.Service,
	chairCatalog *condition.ChairCatalog,
	estateCatalog *condition.EstateCatalog,
	pinger Pinger,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chairs:        chairs,
		estates:       estates,
		ingest:        ingest,
		chairCatalog:  chairCatalog,
		estateCatalog: estateCatalog,
		pinger:        pinger,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrInvalidSelector, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrNoSearchCriteria, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrInvalidPagination, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrInvalidPolygon, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrMalformedUpload, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrDuplicateID, http.StatusBadRequest, codeBadRequest),
	}
	return s
}

// Routes registers every endpoint on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/chair", func(r chi.Router) {
			r.Get("/low_priced", s.lowPricedChairs)
			r.Get("/search", s.searchChairs)
			r.Get("/search/condition", s.chairSearchCondition)
			r.Get("/{id}", s.getChair)
			r.Post("/buy/{id}", s.buyChair)
			r.Post("/", s.ingestChairs)
		})
		r.Route("/estate", func(r chi.Router) {
			r.Get("/low_priced", s.lowPricedEstates)
			r.Get("/search", s.searchEstates)
			r.Get("/search/condition", s.estateSearchCondition)
			r.Post("/nazotte", s.nazotte)
			r.Get("/{id}", s.getEstate)
			r.Post("/req_doc/{id}", s.requestDocument)
			r.Post("/", s.ingestEstates)
		})
		r.Get("/recommended_estate/{id}", s.recommendedEstates)
	})
}

// TxTrackerMiddleware installs per-request transaction bookkeeping so the
// guard can detect handlers that leave a transaction open.
func TxTrackerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(postgres.WithTxTracker(r.Context())))
	})
}

type chairListResponse struct {
	Chairs []domain.Chair `json:"chairs"`
}

type estateListResponse struct {
	Estates []domain.Estate `json:"estates"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type nazotteRequest struct {
	Coordinates []geo.Coordinate `json:"coordinates"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, codeInternalError, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) lowPricedChairs(w http.ResponseWriter, r *http.Request) {
	chairs, err := s.chairs.LowPriced(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if chairs == nil {
		chairs = []domain.Chair{}
	}
	writeJSON(w, http.StatusOK, chairListResponse{Chairs: chairs})
}

func (s *Server) searchChairs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.chairs.Search(r.Context(), chairuc.SearchInput{
		PriceRangeID:  q.Get("priceRangeId"),
		HeightRangeID: q.Get("heightRangeId"),
		WidthRangeID:  q.Get("widthRangeId"),
		DepthRangeID:  q.Get("depthRangeId"),
		Kind:          q.Get("kind"),
		Color:         q.Get("color"),
		Features:      splitFeatures(q.Get("features")),
		Page:          q.Get("page"),
		PerPage:       q.Get("perPage"),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) chairSearchCondition(w http.ResponseWriter, r *http.Request) {
	writeRaw(w, s.chairCatalog.Raw())
}

func (s *Server) getChair(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	c, err := s.chairs.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) buyChair(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "email is required")
		return
	}

	if err := s.chairs.Buy(r.Context(), id, req.Email); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) ingestChairs(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("chairs")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "chairs file is required")
		return
	}
	defer file.Close()

	if _, err := s.ingest.IngestChairs(r.Context(), file); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct{}{})
}

func (s *Server) lowPricedEstates(w http.ResponseWriter, r *http.Request) {
	estates, err := s.estates.LowPriced(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if estates == nil {
		estates = []domain.Estate{}
	}
	writeJSON(w, http.StatusOK, estateListResponse{Estates: estates})
}

func (s *Server) searchEstates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.estates.Search(r.Context(), estateuc.SearchInput{
		DoorHeightRangeID: q.Get("doorHeightRangeId"),
		DoorWidthRangeID:  q.Get("doorWidthRangeId"),
		RentRangeID:       q.Get("rentRangeId"),
		Features:          splitFeatures(q.Get("features")),
		Page:              q.Get("page"),
		PerPage:           q.Get("perPage"),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) estateSearchCondition(w http.ResponseWriter, r *http.Request) {
	writeRaw(w, s.estateCatalog.Raw())
}

func (s *Server) nazotte(w http.ResponseWriter, r *http.Request) {
	var req nazotteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}

	res, err := s.estates.Nazotte(r.Context(), req.Coordinates)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getEstate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	e, err := s.estates.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) requestDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "email is required")
		return
	}

	if err := s.estates.RequestDocument(r.Context(), id, req.Email); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) ingestEstates(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("estates")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "estates file is required")
		return
	}
	defer file.Close()

	if _, err := s.ingest.IngestEstates(r.Context(), file); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct{}{})
}

func (s *Server) recommendedEstates(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	estates, err := s.estates.RecommendedForChair(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if estates == nil {
		estates = []domain.Estate{}
	}
	writeJSON(w, http.StatusOK, estateListResponse{Estates: estates})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func splitFeatures(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, doc json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidSelector,
		domain.ErrNoSearchCriteria,
		domain.ErrInvalidPagination,
		domain.ErrInvalidPolygon,
		domain.ErrMalformedUpload,
		domain.ErrDuplicateID,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler creates a handler for a simple sentinel -> status mapping.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
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
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
