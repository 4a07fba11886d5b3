package models

// ChatMessage is one message in the unified chat-completion request.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content" binding:"required,max=100000"`
}

// CompleteRequest is the unified /v1/llm/complete request body. Bounds are
// enforced by gin's binding tags (go-playground/validator underneath).
type CompleteRequest struct {
	Provider       string        `json:"provider,omitempty" binding:"omitempty,oneof=openai anthropic auto"`
	Model          string        `json:"model,omitempty"`
	Messages       []ChatMessage `json:"messages" binding:"required,min=1,max=100,dive"`
	Temperature    *float64      `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=2"`
	MaxTokens      *int          `json:"max_tokens,omitempty" binding:"omitempty,gte=1,lte=16000"`
	ResponseFormat string        `json:"response_format,omitempty" binding:"omitempty,oneof=text json"`
}

// CompletionUsage reports normalized token accounting for a completion.
type CompletionUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// CompleteResponse is the unified response envelope regardless of which
// upstream served the request.
type CompleteResponse struct {
	ID           string          `json:"id"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	Content      string          `json:"content"`
	Usage        CompletionUsage `json:"usage"`
	FinishReason string          `json:"finish_reason"`
}

// ProviderModels enumerates one provider's allowlisted models for
// GET /v1/llm/models.
type ProviderModels struct {
	Provider     string   `json:"provider"`
	Configured   bool     `json:"configured"`
	DefaultModel string   `json:"default_model,omitempty"`
	Models       []string `json:"models"`
}
