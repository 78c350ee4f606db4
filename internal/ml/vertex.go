package ml

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"github.com/franckalain/mealscan/internal/config"
)

// VertexModel implements the Model interface for Google's Vertex AI
type VertexModel struct {
	config config.MLConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewVertexModel creates an unloaded Vertex AI model.
func NewVertexModel(cfg config.MLConfig) *VertexModel {
	return &VertexModel{config: cfg}
}

// Load initializes the Vertex AI client
func (m *VertexModel) Load(ctx context.Context) error {
	opts := []option.ClientOption{}

	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	model := client.GenerativeModel(m.config.Model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = vertexSchema()

	m.client = client
	m.model = model
	return nil
}

// Generate processes an image using Vertex AI
func (m *VertexModel) Generate(ctx context.Context, req Request) (Response, error) {
	if m.model == nil {
		return Response{}, fmt.Errorf("model not loaded")
	}

	resp, err := m.model.GenerateContent(ctx,
		genai.Blob{MIMEType: req.MIMEType, Data: req.Image},
		genai.Text(req.Instruction),
	)
	if err != nil {
		return Response{}, fmt.Errorf("failed to call ai: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return Response{}, fmt.Errorf("no response generated")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return Response{}, fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return Response{}, fmt.Errorf("response has no text part")
	}

	out := Response{Text: sb.String(), Usage: Usage{Model: m.config.Model}}
	if u := resp.UsageMetadata; u != nil {
		out.Usage.PromptTokens = int(u.PromptTokenCount)
		out.Usage.CompletionTokens = int(u.CandidatesTokenCount)
		out.Usage.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

// Close closes the Vertex AI client.
func (m *VertexModel) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func vertexSchema() *genai.Schema {
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
