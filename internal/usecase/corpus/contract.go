package corpus

import (
	"context"

	"github.com/kailas-cloud/recall/internal/storage/s3"
)

// ObjectStore lists and reads corpus objects.
type ObjectStore interface {
	Bucket() string
	List(ctx context.Context, prefix string) ([]s3.Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	CheckBucket(ctx context.Context) error
}
