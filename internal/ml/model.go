package ml

import (
	"context"
	"fmt"

	"github.com/franckalain/mealscan/internal/config"
)

// Model is a generative backend that can answer a single image + text
// request with JSON text.
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// Generate sends one request and returns the raw text answer
	Generate(ctx context.Context, req Request) (Response, error)
	// Close releases the backend client
	Close() error
}

// Request is one recognition call.
type Request struct {
	Image       []byte
	MIMEType    string
	Instruction string
}

// Usage tracks the tokens consumed by a request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// Response is the raw backend answer.
type Response struct {
	Text  string
	Usage Usage
}

// NewModel creates a new model instance based on the model type
func NewModel(cfg config.MLConfig) (Model, error) {
	switch cfg.Type {
	case "gemini":
		return NewGeminiModel(cfg), nil
	case "vertex":
		return NewVertexModel(cfg), nil
	case "local":
		return NewLocalModel(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported model type: %s", cfg.Type)
	}
}
