package conversation

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/PabloGalante/chatrelay/internal/app/history"
	"github.com/PabloGalante/chatrelay/internal/app/persist"
	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

type Service struct {
	provider domain.Provider
	chats    domain.ChatStore
	messages domain.MessageStore
	history  *history.Assembler
	writer   *persist.Writer
	locks    *chatLocks
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

type Options struct {
	// SerializeTurns runs turns on the same chat one after another, from the
	// user write until the assistant write completes.
	SerializeTurns bool
	Metrics        *observability.Metrics
}

func NewService(
	provider domain.Provider,
	chats domain.ChatStore,
	messages domain.MessageStore,
	writer *persist.Writer,
	opts Options,
) *Service {
	s := &Service{
		provider: provider,
		chats:    chats,
		messages: messages,
		history:  history.NewAssembler(messages),
		writer:   writer,
		metrics:  opts.Metrics,
		tracer:   otel.Tracer("github.com/PabloGalante/chatrelay/internal/app/conversation"),
		now:      time.Now,
	}
	if opts.SerializeTurns {
		s.locks = newChatLocks()
	}
	return s
}

func (s *Service) CreateChat(ctx context.Context) (*domain.Chat, error) {
	log := observability.LoggerFromContext(ctx)

	chat, err := s.chats.CreateChat(ctx)
	if err != nil {
		log.Error("failed to create chat", "error", err)
		return nil, &domain.PersistenceError{Op: "create chat", Err: err}
	}

	log.Info("chat created", "chat_id", chat.ID)
	return chat, nil
}

func (s *Service) GetChat(ctx context.Context, id domain.ChatID) (*domain.Chat, error) {
	chat, err := s.chats.GetChat(ctx, id)
	if err != nil {
		return nil, storeError("get chat", err)
	}
	return chat, nil
}

// ListChats returns every chat, newest first, with its message count and
// latest message.
func (s *Service) ListChats(ctx context.Context) ([]domain.ChatSummary, error) {
	log := observability.LoggerFromContext(ctx)

	chats, err := s.chats.ListChats(ctx)
	if err != nil {
		log.Error("failed to list chats", "error", err)
		return nil, &domain.PersistenceError{Op: "list chats", Err: err}
	}

	out := make([]domain.ChatSummary, 0, len(chats))
	for _, c := range chats {
		msgs, err := s.messages.ListMessages(ctx, c.ID)
		if err != nil {
			log.Error("failed to list chat messages", "chat_id", c.ID, "error", err)
			return nil, &domain.PersistenceError{Op: "list messages", Err: err}
		}

		summary := domain.ChatSummary{Chat: c, MessageCount: len(msgs)}
		if len(msgs) > 0 {
			summary.LastMessage = msgs[len(msgs)-1]
		}
		out = append(out, summary)
	}

	log.Info("listed chats", "chat_count", len(out))
	return out, nil
}

func (s *Service) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	msg, err := s.messages.GetMessage(ctx, id)
	if err != nil {
		return nil, storeError("get message", err)
	}
	return msg, nil
}

// ListMessages returns the chat's timeline in creation order.
func (s *Service) ListMessages(ctx context.Context, chatID domain.ChatID) ([]*domain.Message, error) {
	log := observability.LoggerFromContext(ctx).With("chat_id", chatID)

	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		return nil, storeError("get chat", err)
	}

	msgs, err := s.messages.ListMessages(ctx, chatID)
	if err != nil {
		log.Error("failed to get messages", "error", err)
		return nil, &domain.PersistenceError{Op: "list messages", Err: err}
	}

	log.Info("fetched chat timeline", "message_count", len(msgs))
	return msgs, nil
}

// storeError keeps not-found errors as they are and wraps everything else.
func storeError(op string, err error) error {
	if domain.IsNotFound(err) {
		return err
	}
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
