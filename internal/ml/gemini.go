package ml

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/franckalain/mealscan/internal/config"
)

// GeminiModel calls the Gemini API with an API key.
type GeminiModel struct {
	config config.MLConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiModel creates an unloaded Gemini model.
func NewGeminiModel(cfg config.MLConfig) *GeminiModel {
	return &GeminiModel{config: cfg}
}

// Load creates the API client and configures JSON output.
func (m *GeminiModel) Load(ctx context.Context) error {
	client, err := genai.NewClient(ctx, option.WithAPIKey(m.config.APIKey))
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(m.config.Model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = geminiSchema()

	m.client = client
	m.model = model
	return nil
}

// Generate sends the image and instruction as one request.
func (m *GeminiModel) Generate(ctx context.Context, req Request) (Response, error) {
	if m.model == nil {
		return Response{}, fmt.Errorf("model not loaded")
	}

	resp, err := m.model.GenerateContent(ctx,
		genai.Blob{MIMEType: req.MIMEType, Data: req.Image},
		genai.Text(req.Instruction),
	)
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return Response{}, fmt.Errorf("generated content is not text")
	}

	out := Response{Text: sb.String(), Usage: Usage{Model: m.config.Model}}
	if u := resp.UsageMetadata; u != nil {
		out.Usage.PromptTokens = int(u.PromptTokenCount)
		out.Usage.CompletionTokens = int(u.CandidatesTokenCount)
		out.Usage.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

// Close closes the underlying Gemini client.
func (m *GeminiModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func geminiSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(estimateFields))
	for _, f := range estimateFields {
		s := &genai.Schema{Description: f.description}
		switch f.kind {
		case kindString:
			s.Type = genai.TypeString
		case kindNumber:
			s.Type = genai.TypeNumber
		case kindBoolean:
			s.Type = genai.TypeBoolean
		}
		props[f.name] = s
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   requiredFields(),
	}
}
