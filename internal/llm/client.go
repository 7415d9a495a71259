package llm

import "context"

type Message struct {
	Role    string
	Content string
}

type Options struct {
	Temperature float32
	MaxTokens   int
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the external text-generation collaborator. Exactly one
// Generate call is made per conversation turn.
type Client interface {
	Generate(ctx context.Context, messages []Message, opts Options) (Response, error)
}
