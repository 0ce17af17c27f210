package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// MockLLM is a deterministic provider and evaluator for local runs.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Complete(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return words(fmt.Sprintf("Hello! You said %q. How can I help you today?", prompt))
}

func (m *MockLLM) CompleteWithHistory(ctx context.Context, prompt string, history []domain.Turn) iter.Seq2[string, error] {
	return words(fmt.Sprintf("You said %q. We have exchanged %d messages so far.", prompt, len(history)))
}

// Evaluate scores by message length so repeated runs agree.
func (m *MockLLM) Evaluate(ctx context.Context, prompt string) (string, error) {
	score := 50 + len(prompt)%50
	if strings.HasPrefix(prompt, "Written by "+domain.RoleAssistant.String()) {
		return fmt.Sprintf(`{"precision": %d}`, score), nil
	}
	return fmt.Sprintf(`{"satisfaction": %d}`, score), nil
}

// words streams text one word at a time, keeping the separators.
func words(text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		fields := strings.SplitAfter(text, " ")
		for _, f := range fields {
			if !yield(f, nil) {
				return
			}
		}
	}
}
