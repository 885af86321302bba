package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"vidboost/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter drives the agent model through the official SDK, with
// function calling mapped onto the port's tool declarations.
type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	maxOut       int
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) ListModels(ctx context.Context) ([]string, error) {
	models := g.client.Models.All(ctx)
	var out []string
	for m := range models {
		if m.Name != "" {
			out = append(out, m.Name)
		}
	}
	if len(out) == 0 && g.defaultModel != "" {
		out = []string{g.defaultModel}
	}
	return out, nil
}

func (g *GeminiAdapter) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	contents, config, err := g.prepare(req)
	if err != nil {
		return adapter.GenerateResult{}, err
	}
	resp, err := g.client.Models.GenerateContent(ctx, modelOrDefault(req.Model, g.defaultModel), contents, config)
	if err != nil {
		return adapter.GenerateResult{}, err
	}
	var result adapter.GenerateResult
	collectParts(resp, &result)
	return result, nil
}

func (g *GeminiAdapter) StreamGenerate(ctx context.Context, req adapter.GenerateRequest, onChunk func(string) error) (adapter.GenerateResult, error) {
	contents, config, err := g.prepare(req)
	if err != nil {
		return adapter.GenerateResult{}, err
	}

	var result adapter.GenerateResult
	var text strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, modelOrDefault(req.Model, g.defaultModel), contents, config) {
		if err != nil {
			return adapter.GenerateResult{}, err
		}
		var chunk adapter.GenerateResult
		collectParts(resp, &chunk)
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if onChunk != nil {
				if err := onChunk(chunk.Text); err != nil {
					return adapter.GenerateResult{}, err
				}
			}
		}
		result.ToolCalls = append(result.ToolCalls, chunk.ToolCalls...)
	}
	result.Text = text.String()
	return result, nil
}

func (g *GeminiAdapter) prepare(req adapter.GenerateRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	if len(req.Messages) == 0 {
		return nil, nil, errors.New("gemini: no messages")
	}
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.maxOut),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDecls(req.Tools)}}
	}
	return toGenAIHistory(req.Messages), config, nil
}

func toFunctionDecls(tools []adapter.ToolDecl) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.Params) > 0 {
			props := make(map[string]*genai.Schema, len(t.Params))
			var required []string
			for name, p := range t.Params {
				props[name] = &genai.Schema{
					Type:        genai.TypeString,
					Description: p.Description,
				}
				if p.Required {
					required = append(required, name)
				}
			}
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			}
		}
		out = append(out, decl)
	}
	return out
}

func toGenAIHistory(msgs []adapter.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "assistant", "model":
			parts := make([]*genai.Part, 0, 2)
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			if m.ToolCall != nil {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					Name: m.ToolCall.Name,
					Args: m.ToolCall.Args,
				}})
			}
			if len(parts) == 0 {
				continue
			}
			out = append(out, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case "tool":
			out = append(out, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					Name:     m.ToolName,
					Response: map[string]any{"output": m.Content},
				}}},
			})
		default:
			// "user" and anything unrecognized go in as user turns.
			out = append(out, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return out
}

func collectParts(resp *genai.GenerateContentResponse, result *adapter.GenerateResult) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return
	}
	var text strings.Builder
	text.WriteString(result.Text)
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, adapter.ToolCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	result.Text = text.String()
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
