// Package imagegen turns text prompts into thumbnail images via the
// Hugging Face inference API.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"vidboost/internal/domain/ports/adapter"
)

var _ adapter.ImageGenAdapter = (*HuggingFaceAdapter)(nil)

const maxImageBytes = 16 << 20

type HuggingFaceAdapter struct {
	apiKey   string
	modelURL string
	http     *http.Client
}

func NewHuggingFaceAdapter(apiKey, modelURL string, timeout time.Duration) (*HuggingFaceAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("huggingface: empty api key")
	}
	if modelURL == "" {
		return nil, errors.New("huggingface: empty model url")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HuggingFaceAdapter{
		apiKey:   apiKey,
		modelURL: modelURL,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// Generate posts the prompt to the model endpoint and returns the raw
// image bytes the API responds with.
func (h *HuggingFaceAdapter) Generate(ctx context.Context, prompt string) (*adapter.GeneratedImage, error) {
	body, _ := json.Marshal(map[string]string{"inputs": prompt})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.modelURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("huggingface http %d: %s", resp.StatusCode, detail)
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, errors.New("huggingface: empty image response")
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return &adapter.GeneratedImage{Bytes: img, ContentType: contentType}, nil
}
