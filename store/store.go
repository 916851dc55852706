//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package store

import "time"

// Store is the key/value contract every coordination component depends
// on. Values are JSON-serialized by both backends so that switching
// backends never changes observable behavior, only cross-instance
// visibility.
//
// A ttl of zero means the backend default (no expiry for the in-process
// backend, the bucket default for the shared one).
type Store interface {
	// Get unmarshals the value for key into `into` and reports whether
	// the key was present and unexpired.
	Get(key string, into any) (bool, error)
	Set(key string, value any, ttl time.Duration) error
	Delete(key string) error
	// Size returns an approximate number of stored entries.
	Size() (int, error)
}

// Backend names accepted by the configuration surface.
const (
	BackendLocal  = "local"
	BackendShared = "shared"
)
