package health

import (
	"context"

	"github.com/kailas-cloud/recall/internal/usecase/query"
)

// IndexStatus reports the installed snapshot.
type IndexStatus interface {
	Status() query.Status
}

// ListenerStatus reports the capture process.
type ListenerStatus interface {
	Status() (running bool, pid int)
}

// Pinger checks an optional dependency such as the answer cache.
type Pinger interface {
	Ping(ctx context.Context) error
}
