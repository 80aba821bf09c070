package ai

import "context"

// Params are the decoding parameters sent with a completion. Zero values
// leave the backend default in place, except Temperature which is always sent.
type Params struct {
	Temperature float32
	TopP        float32
	TopK        int
	MaxTokens   int
	Seed        *int
	// JSONMode asks the backend for a bare JSON object.
	JSONMode bool
}

// Request is one completion call.
type Request struct {
	System string
	User   string
	Params Params
}

// Completion is the raw generated answer.
type Completion struct {
	Text  string
	Model string
}

type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
