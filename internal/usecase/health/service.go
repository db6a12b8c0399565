package health

import (
	"context"
	"time"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const pingTimeout = 2 * time.Second

// Report aggregates the service state. OK stays true while the process serves;
// failing dependency checks are reported in Checks.
type Report struct {
	OK              bool
	IndexedChunks   int
	IndexReady      bool
	IndexShape      *[2]int
	ModelID         string
	ListenerRunning bool
	ListenerPID     int
	SnapshotID      string
	Checks          map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index    IndexStatus
	listener ListenerStatus
	modelID  string
	deps     map[string]Pinger
}

// New creates a Service. deps maps a check name to an optional pinger; nil entries are skipped.
func New(index IndexStatus, listener ListenerStatus, modelID string, deps map[string]Pinger) *Service {
	return &Service{index: index, listener: listener, modelID: modelID, deps: deps}
}

// Check reports index and listener state and pings every dependency.
func (s *Service) Check(ctx context.Context) Report {
	st := s.index.Status()
	r := Report{
		OK:            true,
		IndexedChunks: st.Chunks,
		IndexReady:    st.Ready,
		ModelID:       s.modelID,
		SnapshotID:    st.SnapshotID,
		Checks:        make(map[string]CheckResult),
	}
	if st.Ready {
		r.IndexShape = &[2]int{st.Rows, st.Cols}
	}
	if s.listener != nil {
		r.ListenerRunning, r.ListenerPID = s.listener.Status()
	}

	for name, p := range s.deps {
		if p == nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		if err := p.Ping(pctx); err != nil {
			r.Checks[name] = CheckError
		} else {
			r.Checks[name] = CheckOK
		}
		cancel()
	}
	return r
}
