package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestion signals a blank question.
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrIndexNotReady signals that no searchable snapshot is installed.
	ErrIndexNotReady = errors.New("index is not ready")
	// ErrEmptyVocabulary signals that the corpus produced no n-grams.
	ErrEmptyVocabulary = errors.New("empty vocabulary")

	// ErrBucketNotFound signals a missing object storage bucket.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrBucketForbidden signals denied access to the bucket.
	ErrBucketForbidden = errors.New("bucket access denied")

	// ErrModelPermission signals that the inference endpoint rejected our credentials.
	ErrModelPermission = errors.New("model permission denied")
	// ErrModelInvalidRequest signals a malformed request or unknown model id.
	ErrModelInvalidRequest = errors.New("model request invalid")
	// ErrModelUnavailable signals any other inference failure (network, throttling, timeout).
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelQuotaExceeded signals an exhausted token budget.
	ErrModelQuotaExceeded = errors.New("model token budget exceeded")

	// ErrCaptureAlreadyRunning signals a start while the capture process is alive.
	ErrCaptureAlreadyRunning = errors.New("script is already running")
	// ErrCaptureNotRunning signals a stop without a live capture process.
	ErrCaptureNotRunning = errors.New("script is not running")
	// ErrCaptureBusy signals a start/stop racing an in-progress transition.
	ErrCaptureBusy = errors.New("script is starting or stopping")
	// ErrCaptureArtifactMissing signals that the capture program does not exist.
	ErrCaptureArtifactMissing = errors.New("script file not found on server")
	// ErrCaptureExitedEarly signals that the capture program died right after launch.
	ErrCaptureExitedEarly = errors.New("script failed to start properly")
	// ErrCaptureStartFailed signals that the process could not be spawned.
	ErrCaptureStartFailed = errors.New("failed to start script")
)

// ModelError is a classified inference failure. Kind is one of the ErrModel* sentinels.
type ModelError struct {
	Kind   error
	Model  string
	Detail string
}

func (e *ModelError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Detail)
}

func (e *ModelError) Unwrap() error { return e.Kind }

// NewModelError creates a classified model error.
func NewModelError(kind error, model, detail string) error {
	return &ModelError{Kind: kind, Model: model, Detail: detail}
}

// CaptureError wraps a capture start failure with process diagnostics.
type CaptureError struct {
	Err      error
	PID      int
	ExitCode int
	Output   string
}

func (e *CaptureError) Error() string {
	msg := fmt.Sprintf("%s (pid %d, exit code %d)", e.Err.Error(), e.PID, e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *CaptureError) Unwrap() error { return e.Err }
