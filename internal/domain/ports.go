package domain

import (
	"context"
	"iter"
)

// Provider streams a model reply. Both sequences are lazy, finite and can be
// ranged over only once. A non-nil error ends the sequence.
type Provider interface {
	Complete(ctx context.Context, prompt string) iter.Seq2[string, error]
	CompleteWithHistory(ctx context.Context, prompt string, history []Turn) iter.Seq2[string, error]
}

// Evaluator returns a single completed reply; used for metrics.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// ChatStore defines chat persistence.
type ChatStore interface {
	CreateChat(ctx context.Context) (*Chat, error)
	GetChat(ctx context.Context, id ChatID) (*Chat, error)
	// ListChats returns chats newest first.
	ListChats(ctx context.Context) ([]*Chat, error)
}

// MessageStore defines message persistence. AppendMessage assigns msg.ID
// and, when zero, msg.CreatedAt.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id MessageID) (*Message, error)
	// ListMessages returns a chat's messages in ascending creation order.
	ListMessages(ctx context.Context, chatID ChatID) ([]*Message, error)
}

// Store is a single backend handle implementing both stores.
type Store interface {
	ChatStore
	MessageStore
	Close(ctx context.Context) error
}
