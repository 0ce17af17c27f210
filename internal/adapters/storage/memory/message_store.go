package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.ChatID][]*domain.Message
	byID     map[domain.MessageID]*domain.Message
	now      func() time.Time
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.ChatID][]*domain.Message),
		byID:     make(map[domain.MessageID]*domain.Message),
		now:      time.Now,
	}
}

func (s *MessageStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRole, msg.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = domain.MessageID(uuid.NewString())
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	stored := msg.Clone()
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], stored)
	s.byID[stored.ID] = stored
	return nil
}

func (s *MessageStore) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return msg.Clone(), nil
}

// ListMessages returns messages in append order, which is creation order.
func (s *MessageStore) ListMessages(ctx context.Context, chatID domain.ChatID) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chatID]
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Clone())
	}
	return out, nil
}
