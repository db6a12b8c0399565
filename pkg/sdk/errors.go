package recall

import "github.com/kailas-cloud/recall/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmptyQuestion       = domain.ErrEmptyQuestion
	ErrIndexNotReady       = domain.ErrIndexNotReady
	ErrBucketNotFound      = domain.ErrBucketNotFound
	ErrBucketForbidden     = domain.ErrBucketForbidden
	ErrModelPermission     = domain.ErrModelPermission
	ErrModelInvalidRequest = domain.ErrModelInvalidRequest
	ErrModelUnavailable    = domain.ErrModelUnavailable
	ErrModelQuotaExceeded  = domain.ErrModelQuotaExceeded
)
