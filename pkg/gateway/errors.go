package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProviderAvailable indicates a company has no active provider to
	// route through.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrMigrationTimeout indicates the target provider of a migration did
	// not reach connected within the deadline. Provider states are left
	// unchanged: the old default stays default.
	ErrMigrationTimeout = errors.New("provider migration timed out")

	// ErrProviderInactive indicates an operation targeted a soft-disabled
	// provider config.
	ErrProviderInactive = errors.New("provider is not active")
)

// ActivationError reports a failed provider activation. The registry does
// not retry automatically; the caller decides.
type ActivationError struct {
	ProviderID string
	Err        error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activation of provider %s failed: %v", e.ProviderID, e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}
