package adapter

import "context"

// ObjectStorageAdapter is the port for blob storage. Upload persists the
// artifact regardless of whether the conversation keeps the result;
// PresignURL returns a time-limited retrievable URL for a stored key.
type ObjectStorageAdapter interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PresignURL(ctx context.Context, key string) (string, error)
}
