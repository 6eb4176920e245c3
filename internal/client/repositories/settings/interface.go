// Package settings stores small key/value pairs on the client: per-table
// sync watermarks and the installation id.
package settings

import "context"

type Repository interface {
	// Get returns the value for a key, or an empty string if the key does
	// not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or overwrites a value.
	Set(ctx context.Context, key, value string) error
}
