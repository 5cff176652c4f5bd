package musedex

import "github.com/kailas-cloud/musedex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidArgument = domain.ErrInvalidArgument
	ErrStore           = domain.ErrStore
	ErrUnavailable     = domain.ErrUnavailable
)
