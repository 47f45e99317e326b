package provider

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConnected is returned by Send when the connection state is anything
// other than connected. The caller must re-activate the provider.
var ErrNotConnected = errors.New("provider not connected")

// ConnectError reports a failed connection attempt: bad credentials,
// unreachable backend, or a rejected pairing.
type ConnectError struct {
	ProviderID string
	Reason     string
	Err        error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect failed for provider %s: %s: %v", e.ProviderID, e.Reason, e.Err)
	}

	return fmt.Sprintf("connect failed for provider %s: %s", e.ProviderID, e.Reason)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// RateLimitedError signals backend throttling. RetryAfter is advisory; the
// gateway applies exactly one retry after that delay.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by backend, retry after %s", e.RetryAfter)
}

// DeliveryRejectedError is a backend-side validation failure, e.g. a bad
// destination address. Never retried.
type DeliveryRejectedError struct {
	Address string
	Reason  string
}

func (e *DeliveryRejectedError) Error() string {
	return fmt.Sprintf("delivery to %s rejected: %s", e.Address, e.Reason)
}

// IsRateLimited reports whether err is a backend throttle signal and
// returns the advised delay.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}

	return 0, false
}

// IsConnectError reports whether err came from a failed connect attempt.
func IsConnectError(err error) bool {
	var ce *ConnectError

	return errors.As(err, &ce)
}

// IsDeliveryRejected reports whether err is a backend validation failure.
func IsDeliveryRejected(err error) bool {
	var dr *DeliveryRejectedError

	return errors.As(err, &dr)
}
