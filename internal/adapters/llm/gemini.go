package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

const providerGemini = "gemini"

type GeminiConfig struct {
	// APIKey selects the Gemini API backend. Without it Project and
	// Location select Vertex AI.
	APIKey   string
	Project  string
	Location string
	Model    string
	System   string
}

type GeminiClient struct {
	client *genai.Client
	model  string
	system string
}

// NewGeminiClient creates a streaming domain.Provider backed by Gemini.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{}
	switch {
	case cfg.APIKey != "":
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case cfg.Project != "" && cfg.Location != "":
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, errors.New("gemini: an API key or a GCP project and location are required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
		system: cfg.System,
	}, nil
}

func (g *GeminiClient) Complete(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return g.stream(ctx, prompt, nil)
}

func (g *GeminiClient) CompleteWithHistory(ctx context.Context, prompt string, history []domain.Turn) iter.Seq2[string, error] {
	return g.stream(ctx, prompt, history)
}

func (g *GeminiClient) stream(ctx context.Context, prompt string, history []domain.Turn) iter.Seq2[string, error] {
	contents, system := buildContents(g.system, history, prompt)

	temp := float32(0.7)
	topP := float32(0.9)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: 8192,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
			if err != nil {
				yield("", &domain.ProviderError{Provider: providerGemini, Err: err})
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}

// buildContents maps turns onto Gemini contents. Gemini only knows user and
// model roles, so system turns are folded into the system instruction.
func buildContents(system string, history []domain.Turn, prompt string) ([]*genai.Content, string) {
	instructions := []string{}
	if s := strings.TrimSpace(system); s != "" {
		instructions = append(instructions, s)
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		switch t.Role {
		case domain.RoleUser:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleModel))
		case domain.RoleSystem:
			instructions = append(instructions, t.Content)
		}
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	return contents, strings.Join(instructions, "\n\n")
}
