package pixdex

import "github.com/halcyon-cloud/pixdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation = domain.ErrValidation
	ErrUpstream   = domain.ErrUpstream
	ErrProcessing = domain.ErrProcessing
)
