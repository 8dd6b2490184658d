package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	domusage "github.com/kailas-cloud/trustdesk/internal/domain/usage"
	"github.com/kailas-cloud/trustdesk/internal/logger"
	healthuc "github.com/kailas-cloud/trustdesk/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the question answering API.
type Server struct {
	answers       Answerer
	jobs          JobService
	cached        CachedAnswerService
	usage         UsageReporter
	health        HealthChecker
	answerTimeout time.Duration
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	answers Answerer,
	jobs JobService,
	cached CachedAnswerService,
	usage UsageReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		answers: answers,
		jobs:    jobs,
		cached:  cached,
		usage:   usage,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, CodeConflict),
		sentinelHandler(domain.ErrJobTerminal, http.StatusConflict, CodeConflict),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrTokenBudgetExceeded, http.StatusPaymentRequired, CodeBudgetExceeded),
		sentinelHandler(domain.ErrTurnLimitExceeded, http.StatusBadGateway, CodeTurnLimitExceeded),
		sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout),
	}
	return s
}

// WithAnswerTimeout bounds synchronous answers. Zero disables the deadline.
func (s *Server) WithAnswerTimeout(d time.Duration) *Server {
	s.answerTimeout = d
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/answers", s.CreateAnswer)
		r.Post("/jobs", s.SubmitJob)
		r.Get("/jobs/{jobID}", s.GetJob)
		r.Get("/cached-answers", s.SearchCachedAnswers)
		r.Post("/cached-answers", s.AddCachedAnswer)
		r.Get("/usage", s.GetUsage)
	})
}

// CreateAnswer handles POST /v1/answers.
func (s *Server) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	if s.answerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.answerTimeout)
		defer cancel()
	}

	ans, err := s.answers.Answer(ctx, req.Question, req.Context)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

// SubmitJob handles POST /v1/jobs.
func (s *Server) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if !decodeBody(w, r, &req) {
		return
	}

	j, err := s.jobs.Submit(r.Context(), questionsFromRequest(req.Questions), req.Instructions)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/jobs/"+j.ID)
	writeJSON(w, http.StatusAccepted, jobToResponse(j))
}

// GetJob handles GET /v1/jobs/{jobID}.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, jobToResponse(j))
}

// SearchCachedAnswers handles GET /v1/cached-answers?q=.
func (s *Server) SearchCachedAnswers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query parameter q is required")
		return
	}

	writeJSON(w, http.StatusOK, matchesToList(s.cached.Match(q)))
}

// AddCachedAnswer handles POST /v1/cached-answers.
func (s *Server) AddCachedAnswer(w http.ResponseWriter, r *http.Request) {
	var req CachedAnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	e, err := s.cached.Add(req.Question, req.Answer, req.Keywords)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.usage.GetReport(r.Context(), period))
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
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
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

// safeDomainMessage returns a client-safe message without exposing internals.
// Validation errors keep their field detail.
func safeDomainMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidRequest,
		domain.ErrInvalidTransition,
		domain.ErrJobTerminal,
		domain.ErrRateLimited,
		domain.ErrTokenBudgetExceeded,
		domain.ErrTurnLimitExceeded,
		domain.ErrProviderError,
		context.DeadlineExceeded,
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

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
