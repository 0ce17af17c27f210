package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

const (
	providerMistral       = "mistral"
	defaultMistralBaseURL = "https://api.mistral.ai/v1"
	defaultMistralModel   = "mistral-large-latest"
)

type MistralConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	System  string
}

// MistralClient is a domain.Evaluator talking to Mistral's
// OpenAI-compatible chat completions API.
type MistralClient struct {
	client *openai.Client
	model  string
	system string
}

func NewMistralClient(cfg MistralConfig) (*MistralClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("mistral: API key is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = defaultMistralBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultMistralModel
	}

	return &MistralClient{
		client: openai.NewClientWithConfig(oc),
		model:  model,
		system: cfg.System,
	}, nil
}

// Evaluate sends one prompt and returns the whole reply.
func (c *MistralClient) Evaluate(ctx context.Context, prompt string) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if c.system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return "", &domain.ProviderError{Provider: providerMistral, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.ProviderError{Provider: providerMistral, Err: fmt.Errorf("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}
