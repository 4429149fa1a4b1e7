package notification

import (
	"errors"
	"fmt"
)

// ErrSubscriptionNotFound is returned by storage when no matching
// subscription exists
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ErrSubscriptionGone marks an endpoint the push service reported as
// expired or invalid. The owning subscription is deactivated when a send
// fails with this error.
var ErrSubscriptionGone = errors.New("subscription endpoint gone")

// ErrWebPushNotConfigured is returned when a send is attempted without a
// VAPID key pair
var ErrWebPushNotConfigured = errors.New("web push service not configured")

// SubscriptionError wraps a failed subscribe/unsubscribe operation.
// These are surfaced to the caller; they are not retried automatically.
type SubscriptionError struct {
	Op  string
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s failed: %v", e.Op, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
