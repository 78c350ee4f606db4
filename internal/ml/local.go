package ml

import (
	"context"
	"fmt"
	"os"

	"github.com/franckalain/mealscan/internal/config"
)

// LocalModel answers every request with the contents of a canned JSON
// file. It needs no network access.
type LocalModel struct {
	config   config.MLConfig
	response string
}

// NewLocalModel creates an unloaded local model.
func NewLocalModel(cfg config.MLConfig) *LocalModel {
	return &LocalModel{config: cfg}
}

// Load reads the response file.
func (m *LocalModel) Load(ctx context.Context) error {
	data, err := os.ReadFile(m.config.ResponseFile)
	if err != nil {
		return fmt.Errorf("failed to read local response file: %w", err)
	}
	m.response = string(data)
	return nil
}

// Generate returns the canned response.
func (m *LocalModel) Generate(ctx context.Context, req Request) (Response, error) {
	if m.response == "" {
		return Response{}, fmt.Errorf("model not loaded")
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return Response{Text: m.response, Usage: Usage{Model: "local"}}, nil
}

func (m *LocalModel) Close() error { return nil }
