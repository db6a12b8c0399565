package chi

import "github.com/kailas-cloud/recall/internal/domain"

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest     ErrorCode = "bad_request"
	ErrorCodeUnauthorized   ErrorCode = "unauthorized"
	ErrorCodeIndexNotReady  ErrorCode = "index_not_ready"
	ErrorCodeReloadFailed   ErrorCode = "reload_failed"
	ErrorCodeAlreadyRunning ErrorCode = "script_already_running"
	ErrorCodeNotRunning     ErrorCode = "script_not_running"
	ErrorCodeBusy           ErrorCode = "script_busy"
	ErrorCodeScriptMissing  ErrorCode = "script_not_found"
	ErrorCodeScriptFailed   ErrorCode = "script_failed"
	ErrorCodeInternalError  ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error. Detail repeats Message for
// clients that read the detail field.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail"`
}

// AskRequest is the POST /ask body. A missing top_k uses the configured default.
type AskRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
}

// AskResponse is the POST /ask result.
type AskResponse struct {
	Answer   string           `json:"answer"`
	Passages []domain.Passage `json:"passages"`
}

// SearchResponse is the GET /search result.
type SearchResponse struct {
	Query    string           `json:"query"`
	Passages []domain.Passage `json:"passages"`
}

// HealthResponse is the GET /health result.
type HealthResponse struct {
	OK              bool              `json:"ok"`
	IndexedChunks   int               `json:"indexed_chunks"`
	IndexReady      bool              `json:"index_ready"`
	IndexShape      *[2]int           `json:"index_shape,omitempty"`
	ModelID         string            `json:"model_id"`
	ListenerRunning bool              `json:"listener_running"`
	ListenerPID     *int              `json:"listener_pid,omitempty"`
	SnapshotID      string            `json:"snapshot_id,omitempty"`
	Checks          map[string]string `json:"checks,omitempty"`
}

// ReloadResponse is the POST /reload result.
type ReloadResponse struct {
	OK            bool   `json:"ok"`
	IndexedChunks int    `json:"indexed_chunks"`
	IndexReady    bool   `json:"index_ready"`
	Files         int    `json:"files"`
	SnapshotID    string `json:"snapshot_id,omitempty"`
}

// ScriptResponse is the result of starting or stopping the capture process.
type ScriptResponse struct {
	Message string `json:"message"`
	PID     int    `json:"pid"`
}
