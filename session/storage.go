package session

import "context"

// Storage is the durable key-value store the reconciler persists the current
// token and email into. It is shared across tabs or processes reading the
// same keys; Watch is the change-notification signal that makes an external
// write indistinguishable from a local one.
type Storage interface {
	// Get returns the value for key, with ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key and notifies watchers.
	Set(ctx context.Context, key, value string) error

	// Del removes key and notifies watchers.
	Del(ctx context.Context, key string) error

	// Watch registers fn to be called with the key of every change, local or
	// external. fn may be invoked concurrently and must not block. The
	// returned stop function unregisters fn and must be called on teardown.
	Watch(fn func(key string)) (stop func(), err error)
}
