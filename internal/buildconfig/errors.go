package buildconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a catalog or resolved configuration breaks an invariant
	ErrInvalidConfig = errors.New("invalid build configuration")
	// ErrCatalogRead indicates the catalog file could not be read or decoded
	ErrCatalogRead = errors.New("failed to read catalog")
)

func wrapInvalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
