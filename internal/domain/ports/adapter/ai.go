package adapter

import "context"

// Message represents a chat message handed to the model.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system", "tool"
	Content string `json:"content"`

	// ToolCall is set on assistant messages that requested a tool.
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	// ToolName is set on tool-role messages carrying an observation.
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall is a model-requested invocation of a declared tool.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ParamDecl describes one parameter of a tool.
type ParamDecl struct {
	Type        string // "string" for everything we declare today
	Description string
	Required    bool
}

// ToolDecl is a named, schema-typed function the model may invoke.
type ToolDecl struct {
	Name        string
	Description string
	Params      map[string]ParamDecl
}

// GenerateRequest is one think/act cycle's input.
type GenerateRequest struct {
	Model    string
	System   string
	Messages []Message
	Tools    []ToolDecl
}

// GenerateResult carries the cycle's outcome: accumulated text and any
// tool calls the model requested. Both may be non-empty in one cycle.
type GenerateResult struct {
	Text      string
	ToolCalls []ToolCall
}

// AIServiceAdapter is the port for the agent's LLM.
type AIServiceAdapter interface {
	ListModels(ctx context.Context) ([]string, error)

	// Generate runs one non-streaming cycle.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)

	// StreamGenerate forwards each text fragment to onChunk as it arrives
	// (no buffering beyond one chunk) and returns the accumulated result.
	// onChunk returning an error aborts the stream.
	StreamGenerate(ctx context.Context, req GenerateRequest, onChunk func(string) error) (GenerateResult, error)
}

// TitleModelAdapter is the (possibly different) model used for one-shot
// title generation.
type TitleModelAdapter interface {
	GenerateTitle(ctx context.Context, summary, considerations string) (string, error)
}
