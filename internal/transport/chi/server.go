// Package chi exposes the catalog engine over HTTP. The layer stays thin:
// route, decode, call a usecase, map the error. Request validation beyond
// shape checks lives in the usecases.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/studycat-io/studycat/internal/domain"
	"github.com/studycat-io/studycat/internal/logger"
	"github.com/studycat-io/studycat/internal/metrics"
	datasetuc "github.com/studycat-io/studycat/internal/usecase/dataset"
	healthuc "github.com/studycat-io/studycat/internal/usecase/health"
	searchuc "github.com/studycat-io/studycat/internal/usecase/search"
	studyuc "github.com/studycat-io/studycat/internal/usecase/study"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	search        *searchuc.Service
	studies       *studyuc.Service
	datasets      *datasetuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	studies *studyuc.Service,
	datasets *datasetuc.Service,
	health *healthuc.Service,
	log *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		studies:  studies,
		datasets: datasets,
		health:   health,
		logger:   log,
	}
	s.errorHandlers = []errorHandler{
		tokenConflictHandler,
		stateMismatchHandler,
		sentinelHandler(domain.ErrConflict, http.StatusConflict, "conflict"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, "forbidden"),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, "upstream_error"),
	}
	return s
}

// Routes builds the router with the standard middleware chain.
func (s *Server) Routes(actorMW func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())
	r.Use(actorMW)

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/studies", s.SearchStudies)
		r.Post("/studies", s.CreateStudy)
		r.Get("/studies/{studyID}", s.GetStudyDetail)
		r.Post("/studies/{studyID}/transitions", s.PerformTransition)
		r.Post("/studies/{studyID}/versions", s.CreateVersion)
		r.Post("/studies/{studyID}/datasets", s.CreateDataset)
		r.Delete("/studies/{studyID}/datasets/{datasetID}", s.DeleteDataset)
		r.Post("/studies/{studyID}/datasets/{datasetID}/rename", s.RenameDataset)
		r.Get("/datasets", s.SearchDatasets)
	})
	return r
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a
// plain text stacktrace.
func jsonRecoverer(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					log.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware assigns a request id, stores a per-request logger in
// the context, and emits one canonical log line per request.
func wideEventMiddleware(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()
			w.Header().Set("X-Request-ID", requestID)

			reqLogger := log.With(zap.String("request_id", requestID))
			ctx := logger.ContextWithLogger(r.Context(), reqLogger)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

// SearchStudies handles GET /api/v1/studies.
func (s *Server) SearchStudies(w http.ResponseWriter, r *http.Request) {
	res, err := s.search.SearchStudies(r.Context(), ActorFromContext(r.Context()), searchParamsFromQuery(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SearchDatasets handles GET /api/v1/datasets.
func (s *Server) SearchDatasets(w http.ResponseWriter, r *http.Request) {
	res, err := s.search.SearchDatasets(r.Context(), ActorFromContext(r.Context()), searchParamsFromQuery(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetStudyDetail handles GET /api/v1/studies/{studyID}.
func (s *Server) GetStudyDetail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	detail, err := s.studies.GetDetail(r.Context(), ActorFromContext(r.Context()),
		chi.URLParam(r, "studyID"), q.Get("version"), q.Get("lang"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type textPayload struct {
	JA string `json:"ja"`
	EN string `json:"en"`
}

func (t textPayload) toDomain() domain.Text { return domain.Text{JA: t.JA, EN: t.EN} }

type createStudyRequest struct {
	Title    textPayload `json:"title"`
	Summary  textPayload `json:"summary"`
	Provider textPayload `json:"provider"`
	Owners   []string    `json:"owners"`
}

// CreateStudy handles POST /api/v1/studies.
func (s *Server) CreateStudy(w http.ResponseWriter, r *http.Request) {
	var req createStudyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	created, err := s.studies.Create(r.Context(), ActorFromContext(r.Context()), studyuc.CreateInput{
		Title:    req.Title.toDomain(),
		Summary:  req.Summary.toDomain(),
		Provider: req.Provider.toDomain(),
		Owners:   req.Owners,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/studies/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

type transitionRequest struct {
	Action string `json:"action"`
	Token  string `json:"token"`
}

// PerformTransition handles POST /api/v1/studies/{studyID}/transitions.
func (s *Server) PerformTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	token, err := domain.ParseToken(req.Token)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.studies.PerformTransition(r.Context(), ActorFromContext(r.Context()),
		chi.URLParam(r, "studyID"), req.Action, token)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type datasetRefPayload struct {
	DatasetID string `json:"datasetId"`
	Version   string `json:"version"`
}

type createVersionRequest struct {
	ReleaseDate string              `json:"releaseDate"`
	ReleaseNote textPayload         `json:"releaseNote"`
	Datasets    []datasetRefPayload `json:"datasets"`
}

// CreateVersion handles POST /api/v1/studies/{studyID}/versions.
func (s *Server) CreateVersion(w http.ResponseWriter, r *http.Request) {
	var req createVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	var refs []domain.DatasetRef
	if req.Datasets != nil {
		refs = make([]domain.DatasetRef, 0, len(req.Datasets))
		for _, ref := range req.Datasets {
			refs = append(refs, domain.DatasetRef{DatasetID: ref.DatasetID, Version: ref.Version})
		}
	}

	detail, err := s.studies.CreateVersion(r.Context(), ActorFromContext(r.Context()),
		chi.URLParam(r, "studyID"), studyuc.VersionInput{
			ReleaseDate: req.ReleaseDate,
			ReleaseNote: req.ReleaseNote.toDomain(),
			Datasets:    refs,
			Lang:        r.URL.Query().Get("lang"),
		})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

type experimentPayload struct {
	AssayType        string `json:"assayType"`
	Tissue           string `json:"tissue"`
	Platform         string `json:"platform"`
	Tumor            bool   `json:"tumor"`
	ParticipantCount int    `json:"participantCount"`
	Diseases         []struct {
		Code  string      `json:"code"`
		Label textPayload `json:"label"`
	} `json:"diseases"`
}

type createDatasetRequest struct {
	DatasetID      string              `json:"datasetId"`
	Version        string              `json:"version"`
	Name           textPayload         `json:"name"`
	TypeOfData     string              `json:"typeOfData"`
	AccessCriteria string              `json:"accessCriteria"`
	ReleaseDate    string              `json:"releaseDate"`
	Experiments    []experimentPayload `json:"experiments"`
}

// CreateDataset handles POST /api/v1/studies/{studyID}/datasets.
func (s *Server) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	exps := make([]domain.Experiment, 0, len(req.Experiments))
	for _, e := range req.Experiments {
		diseases := make([]domain.Disease, 0, len(e.Diseases))
		for _, d := range e.Diseases {
			diseases = append(diseases, domain.Disease{Code: d.Code, Label: d.Label.toDomain()})
		}
		exps = append(exps, domain.Experiment{
			AssayType:        e.AssayType,
			Tissue:           e.Tissue,
			Platform:         e.Platform,
			Tumor:            e.Tumor,
			ParticipantCount: e.ParticipantCount,
			Diseases:         diseases,
		})
	}

	created, err := s.datasets.Create(r.Context(), ActorFromContext(r.Context()), datasetuc.CreateInput{
		StudyID:        chi.URLParam(r, "studyID"),
		DatasetID:      req.DatasetID,
		Version:        req.Version,
		Name:           req.Name.toDomain(),
		TypeOfData:     req.TypeOfData,
		AccessCriteria: domain.AccessCriteria(req.AccessCriteria),
		ReleaseDate:    req.ReleaseDate,
		Experiments:    exps,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeleteDataset handles DELETE /api/v1/studies/{studyID}/datasets/{datasetID}.
// The optional version query parameter narrows the removal to one release.
func (s *Server) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	err := s.datasets.Delete(r.Context(), ActorFromContext(r.Context()),
		chi.URLParam(r, "studyID"), chi.URLParam(r, "datasetID"), r.URL.Query().Get("version"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renameRequest struct {
	NewID string `json:"newId"`
}

// RenameDataset handles POST /api/v1/studies/{studyID}/datasets/{datasetID}/rename.
func (s *Server) RenameDataset(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	err := s.datasets.Rename(r.Context(), ActorFromContext(r.Context()),
		chi.URLParam(r, "studyID"), chi.URLParam(r, "datasetID"), req.NewID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"datasetId": req.NewID})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrForbidden,
		domain.ErrConflict,
		domain.ErrStateMismatch,
		domain.ErrValidation,
		domain.ErrUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// tokenConflictHandler handles stale version tokens, returning the current
// token so the caller can re-read and retry safely.
func tokenConflictHandler(w http.ResponseWriter, err error, msg string) bool {
	var tce *domain.TokenConflictError
	if !errors.As(err, &tce) {
		return false
	}
	writeJSON(w, http.StatusConflict, map[string]any{
		"code":          "token_conflict",
		"message":       msg,
		"current_token": tce.Current.String(),
	})
	return true
}

// stateMismatchHandler handles workflow from-state mismatches with the
// expected and actual statuses attached.
func stateMismatchHandler(w http.ResponseWriter, err error, msg string) bool {
	var sme *domain.StateMismatchError
	if !errors.As(err, &sme) {
		return false
	}
	writeJSON(w, http.StatusConflict, map[string]any{
		"code":    "state_mismatch",
		"message": msg,
		"action":  sme.Action,
		"want":    sme.Want,
		"got":     sme.Got,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
