package retrieve

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/monolith/internal/urls"
)

// ErrRetrieval is matched by every error Retrieve returns. Callers that only
// need to know "the asset is unavailable" check for this one.
var ErrRetrieval = errors.New("retrieval failed")

// Failure kinds
var (
	ErrResolution        = urls.ErrResolution
	ErrSecurity          = errors.New("security error")
	ErrNotFound          = errors.New("file not found")
	ErrIsDirectory       = errors.New("is a directory")
	ErrHTTPStatus        = errors.New("unexpected status")
	ErrNetwork           = errors.New("network error")
	ErrDecode            = errors.New("malformed payload")
	ErrBlockedDomain     = errors.New("domain excluded")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrFrameCycle        = errors.New("document already being embedded")
)

func failure(kind error, subject string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %w: %s: %w", ErrRetrieval, kind, subject, cause)
	}
	return fmt.Errorf("%w: %w: %s", ErrRetrieval, kind, subject)
}
