package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"vidboost/internal/domain/ports/adapter"
)

var _ adapter.TitleModelAdapter = (*GroqTitleAdapter)(nil)

const titleSystemPrompt = "You write YouTube video titles. Reply with exactly one title: " +
	"under 70 characters, curiosity-driven, no quotes, no surrounding text."

// GroqTitleAdapter generates one-shot titles through Groq's OpenAI-compatible
// chat completions endpoint.
type GroqTitleAdapter struct {
	client openai.Client
	model  string
}

func NewGroqTitleAdapter(apiKey, baseURL, model string) (*GroqTitleAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("groq: empty api key")
	}
	return &GroqTitleAdapter{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
		),
		model: model,
	}, nil
}

func (g *GroqTitleAdapter) GenerateTitle(ctx context.Context, summary, considerations string) (string, error) {
	prompt := "Video summary: " + summary
	if considerations != "" {
		prompt += "\nConsiderations: " + considerations
	}
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(titleSystemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("groq: empty completion")
	}
	title := strings.TrimSpace(resp.Choices[0].Message.Content)
	title = strings.Trim(title, `"`)
	if title == "" {
		return "", errors.New("groq: blank title")
	}
	return title, nil
}
