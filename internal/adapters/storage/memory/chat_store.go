package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

type ChatStore struct {
	mu    sync.RWMutex
	chats map[domain.ChatID]*domain.Chat
	now   func() time.Time
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		chats: make(map[domain.ChatID]*domain.Chat),
		now:   time.Now,
	}
}

func (s *ChatStore) CreateChat(ctx context.Context) (*domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := &domain.Chat{
		ID:        domain.ChatID(uuid.NewString()),
		CreatedAt: s.now(),
	}
	s.chats[chat.ID] = chat

	cp := *chat
	return &cp, nil
}

func (s *ChatStore) GetChat(ctx context.Context, id domain.ChatID) (*domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, domain.ErrChatNotFound
	}

	cp := *chat
	return &cp, nil
}

func (s *ChatStore) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		cp := *c
		out = append(out, &cp)
	}

	slices.SortFunc(out, func(a, b *domain.Chat) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}
