// Package history rebuilds conversation context from stored messages.
package history

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// Context is the ordered history handed to a provider.
type Context struct {
	ChatID domain.ChatID
	Turns  []domain.Turn
}

// ColdStart reports whether there is no prior history. A cold start must use
// the provider's no-history entry point.
func (c Context) ColdStart() bool {
	return len(c.Turns) == 0
}

type Assembler struct {
	messages domain.MessageStore
}

func NewAssembler(messages domain.MessageStore) *Assembler {
	return &Assembler{messages: messages}
}

// Load returns the chat's history in store order as seen at call time,
// omitting the messages named in exclude. It never retries; store failures
// come back as *domain.PersistenceError.
func (a *Assembler) Load(ctx context.Context, chatID domain.ChatID, exclude ...domain.MessageID) (Context, error) {
	msgs, err := a.messages.ListMessages(ctx, chatID)
	if err != nil {
		return Context{}, &domain.PersistenceError{Op: "load history", Err: err}
	}

	turns := make([]domain.Turn, 0, len(msgs))
	for _, m := range msgs {
		if slices.Contains(exclude, m.ID) {
			continue
		}
		turns = append(turns, domain.Turn{Role: m.Role, Content: m.Content})
	}

	return Context{ChatID: chatID, Turns: turns}, nil
}

// Normalize validates caller-supplied turns: every role must be known and
// blank turns are dropped.
func Normalize(turns []domain.Turn) ([]domain.Turn, error) {
	out := make([]domain.Turn, 0, len(turns))
	for i, t := range turns {
		role, err := domain.ParseRole(string(t.Role))
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		out = append(out, domain.Turn{Role: role, Content: t.Content})
	}
	return out, nil
}
