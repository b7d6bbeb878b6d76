package ai

import (
	"context"
)

// Chunk is one incremental piece of a streamed completion. Done marks the
// end of the stream.
type Chunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// Turn is one prior exchange passed back as conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Status describes backend reachability and whether the configured model is
// loaded.
type Status struct {
	Reachable   bool   `json:"ollama"`
	ModelLoaded bool   `json:"model_loaded"`
	Model       string `json:"model"`
}

// Engine streams chat completions. The stream is finite and not
// restartable; OnChunk returning an error aborts it.
type Engine interface {
	StreamChat(ctx context.Context, message string, history []Turn, onChunk func(Chunk) error) error
	Status(ctx context.Context) *Status
}
