package adapter

import "context"

// GeneratedImage is the raw artifact returned by the image provider.
type GeneratedImage struct {
	Bytes       []byte
	ContentType string
}

// ImageGenAdapter is the port for the image-generation provider.
type ImageGenAdapter interface {
	Generate(ctx context.Context, prompt string) (*GeneratedImage, error)
}
