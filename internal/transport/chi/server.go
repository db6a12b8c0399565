package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/logger"
)

const (
	msgStarted = "Screenshot script started successfully."
	msgStopped = "Stop signal sent to screenshot script."
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// publicError pairs a sentinel with the message clients see for it.
type publicError struct {
	sentinel error
	message  string
}

// publicErrors lists the sentinels whose messages are safe to return, in match order.
var publicErrors = []publicError{
	{domain.ErrEmptyQuestion, "Question cannot be empty"},
	{domain.ErrIndexNotReady, "Index is not ready. Please wait or reload."},
	{domain.ErrCaptureAlreadyRunning, "Script is already running."},
	{domain.ErrCaptureNotRunning, "Script is not running."},
	{domain.ErrCaptureBusy, "Script is starting or stopping, try again."},
	{domain.ErrCaptureArtifactMissing, "Screenshot script file not found on server."},
	{domain.ErrCaptureExitedEarly, "Script failed to start properly. Check server logs."},
	{domain.ErrCaptureStartFailed, "Failed to start script."},
}

// Server serves the question answering and capture control API.
type Server struct {
	query         QueryService
	health        HealthService
	capture       CaptureController
	defaultTopK   int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. defaultTopK applies when a request omits top_k.
func NewServer(
	query QueryService,
	health HealthService,
	capture CaptureController,
	defaultTopK int,
) *Server {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	s := &Server{
		query:       query,
		health:      health,
		capture:     capture,
		defaultTopK: defaultTopK,
	}
	s.errorHandlers = []errorHandler{
		captureExitHandler,
		sentinelHandler(domain.ErrEmptyQuestion, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrIndexNotReady, http.StatusServiceUnavailable, ErrorCodeIndexNotReady),
		sentinelHandler(domain.ErrCaptureAlreadyRunning, http.StatusBadRequest, ErrorCodeAlreadyRunning),
		sentinelHandler(domain.ErrCaptureNotRunning, http.StatusBadRequest, ErrorCodeNotRunning),
		sentinelHandler(domain.ErrCaptureBusy, http.StatusConflict, ErrorCodeBusy),
		sentinelHandler(domain.ErrCaptureArtifactMissing, http.StatusInternalServerError, ErrorCodeScriptMissing),
		sentinelHandler(domain.ErrCaptureStartFailed, http.StatusInternalServerError, ErrorCodeScriptFailed),
	}
	return s
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	resp := HealthResponse{
		OK:              report.OK,
		IndexedChunks:   report.IndexedChunks,
		IndexReady:      report.IndexReady,
		IndexShape:      report.IndexShape,
		ModelID:         report.ModelID,
		ListenerRunning: report.ListenerRunning,
		SnapshotID:      report.SnapshotID,
	}
	if report.ListenerRunning {
		pid := report.ListenerPID
		resp.ListenerPID = &pid
	}
	if len(report.Checks) > 0 {
		resp.Checks = make(map[string]string, len(report.Checks))
		for k, v := range report.Checks {
			resp.Checks[k] = string(v)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Reload handles POST /reload.
func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Info("Reloading index via API call")

	st, err := s.query.Reload(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Index reload failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, ErrorCodeReloadFailed, "Index reload failed, previous index kept.")
		return
	}

	writeJSON(w, http.StatusOK, ReloadResponse{
		OK:            true,
		IndexedChunks: st.Chunks,
		IndexReady:    st.Ready,
		Files:         st.Files,
		SnapshotID:    st.SnapshotID,
	})
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topK := s.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	logger.FromContext(r.Context()).Info("Received question", zap.String("question", req.Question), zap.Int("top_k", topK))

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ans, err := s.query.Ask(ctx, req.Question, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setModelHeaders(w, usage)
	writeJSON(w, http.StatusOK, AskResponse{Answer: ans.Answer, Passages: nonNil(ans.Passages)})
}

// Search handles GET /search?q=...&top_k=...
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var (
		q    string
		topK *int
	)
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid query parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", r.URL.Query(), &topK); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid query parameter top_k: "+err.Error())
		return
	}

	k := s.defaultTopK
	if topK != nil {
		k = *topK
	}

	passages, err := s.query.Search(r.Context(), q, k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Passages: nonNil(passages)})
}

// StartScript handles POST /start_script.
func (s *Server) StartScript(w http.ResponseWriter, r *http.Request) {
	pid, err := s.capture.Start(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScriptResponse{Message: msgStarted, PID: pid})
}

// StopScript handles POST /stop_script.
func (s *Server) StopScript(w http.ResponseWriter, r *http.Request) {
	pid, err := s.capture.Stop(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScriptResponse{Message: msgStopped, PID: pid})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setModelHeaders(w http.ResponseWriter, usage *domain.ModelUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Model-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func nonNil(p []domain.Passage) []domain.Passage {
	if p == nil {
		return []domain.Passage{}
	}
	return p
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
		Detail:  message,
	})
}

// safeDomainMessage returns a client message for a sentinel error without exposing internals.
func safeDomainMessage(err error) string {
	for _, p := range publicErrors {
		if errors.Is(err, p.sentinel) {
			return p.message
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

// captureExitHandler reports an early capture exit with the tail of its output.
func captureExitHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrCaptureExitedEarly) {
		return false
	}
	var ce *domain.CaptureError
	if errors.As(err, &ce) && ce.Output != "" {
		msg += " Error: " + ce.Output
	}
	writeError(w, http.StatusInternalServerError, ErrorCodeScriptFailed, msg)
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
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
