// Package firestore stores chats and messages in the "chats" and "messages"
// collections. ListMessages filters on chat_id and orders by seq, which
// needs the composite index in firestore.indexes.json at the repository
// root. Deploy it with:
//
//	firebase deploy --only firestore:indexes
//
// The emulator does not enforce composite indexes.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

type Store struct {
	client *firestore.Client
	now    func() time.Time
}

// NewStore creates a Firestore store.
// Uses the project passed (CHATRELAY_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client, now: time.Now}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) chatsCol() *firestore.CollectionRef {
	return s.client.Collection("chats")
}

// Messages live in a top-level collection so they can be fetched by id
// without knowing their chat.
func (s *Store) messagesCol() *firestore.CollectionRef {
	return s.client.Collection("messages")
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type chatDoc struct {
	CreatedAt time.Time `firestore:"created_at"`
}

type messageDoc struct {
	ChatID    string    `firestore:"chat_id"`
	Role      string    `firestore:"role"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"created_at"`
	// Seq breaks created_at ties within a chat.
	Seq int64 `firestore:"seq"`
}

func (d messageDoc) toDomain(id string) (*domain.Message, error) {
	role, err := domain.ParseRole(d.Role)
	if err != nil {
		return nil, err
	}
	return &domain.Message{
		ID:        domain.MessageID(id),
		ChatID:    domain.ChatID(d.ChatID),
		Role:      role,
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
	}, nil
}

// ─────────────────────────────────────────
// ChatStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateChat(ctx context.Context) (*domain.Chat, error) {
	doc := chatDoc{CreatedAt: s.now().UTC()}

	ref := s.chatsCol().NewDoc()
	if _, err := ref.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore CreateChat: %w", err)
	}

	return &domain.Chat{ID: domain.ChatID(ref.ID), CreatedAt: doc.CreatedAt}, nil
}

func (s *Store) GetChat(ctx context.Context, id domain.ChatID) (*domain.Chat, error) {
	if id == "" {
		return nil, domain.ErrChatNotFound
	}

	snap, err := s.chatsCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrChatNotFound
		}
		return nil, fmt.Errorf("firestore GetChat: %w", err)
	}

	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetChat decode: %w", err)
	}

	return &domain.Chat{ID: id, CreatedAt: doc.CreatedAt}, nil
}

func (s *Store) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	iter := s.chatsCol().OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var out []*domain.Chat
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListChats: %w", err)
		}

		var doc chatDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode chatDoc: %w", err)
		}

		out = append(out, &domain.Chat{
			ID:        domain.ChatID(snap.Ref.ID),
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRole, msg.Role)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	doc := messageDoc{
		ChatID:    string(msg.ChatID),
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		Seq:       msg.CreatedAt.UnixNano(),
	}

	ref := s.messagesCol().NewDoc()
	if _, err := ref.Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}

	msg.ID = domain.MessageID(ref.ID)
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	if id == "" {
		return nil, domain.ErrMessageNotFound
	}

	snap, err := s.messagesCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("firestore GetMessage: %w", err)
	}

	var doc messageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetMessage decode: %w", err)
	}
	return doc.toDomain(snap.Ref.ID)
}

func (s *Store) ListMessages(ctx context.Context, chatID domain.ChatID) ([]*domain.Message, error) {
	q := s.messagesCol().
		Where("chat_id", "==", string(chatID)).
		OrderBy("seq", firestore.Asc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []*domain.Message{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListMessages: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}

		msg, err := doc.toDomain(snap.Ref.ID)
		if err != nil {
			return nil, fmt.Errorf("firestore ListMessages: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}
