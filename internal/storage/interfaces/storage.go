package interfaces

// KeyValueStorer defines the interface for durable key-value persistence.
// Values are opaque blobs; callers own serialization.
type KeyValueStorer interface {
	// Get returns the stored value for key. The boolean reports whether
	// the key was present.
	Get(key string) ([]byte, bool, error)

	// Set writes the value for key, replacing any existing value.
	Set(key string, value []byte) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys returns all stored keys that start with prefix.
	Keys(prefix string) ([]string, error)

	Close() error
}
