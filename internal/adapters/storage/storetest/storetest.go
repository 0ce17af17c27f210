// Package storetest is a conformance suite every domain.Store backend runs.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// Run exercises newStore against the store contract. newStore must return
// an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) domain.Store) {
	t.Helper()

	open := func(t *testing.T) domain.Store {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s
	}

	t.Run("CreateAndGetChat", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		chat, err := s.CreateChat(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, chat.ID)
		assert.False(t, chat.CreatedAt.IsZero())

		got, err := s.GetChat(ctx, chat.ID)
		require.NoError(t, err)
		assert.Equal(t, chat.ID, got.ID)
		assert.WithinDuration(t, chat.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("GetUnknownChat", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		for _, id := range []domain.ChatID{"does-not-exist", "000000000000000000000000", "999999"} {
			_, err := s.GetChat(ctx, id)
			assert.ErrorIs(t, err, domain.ErrChatNotFound, "id %q", id)
		}
	})

	t.Run("ListChatsNewestFirst", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		var ids []domain.ChatID
		for range 3 {
			c, err := s.CreateChat(ctx)
			require.NoError(t, err)
			ids = append(ids, c.ID)
			time.Sleep(2 * time.Millisecond)
		}

		chats, err := s.ListChats(ctx)
		require.NoError(t, err)
		require.Len(t, chats, 3)
		assert.Equal(t, ids[2], chats[0].ID)
		assert.Equal(t, ids[0], chats[2].ID)
	})

	t.Run("AppendAssignsIdentity", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		chat, err := s.CreateChat(ctx)
		require.NoError(t, err)

		msg := &domain.Message{ChatID: chat.ID, Role: domain.RoleUser, Content: "Hola"}
		require.NoError(t, s.AppendMessage(ctx, msg))
		require.NotEmpty(t, msg.ID)
		assert.False(t, msg.CreatedAt.IsZero())

		got, err := s.GetMessage(ctx, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, chat.ID, got.ChatID)
		assert.Equal(t, domain.RoleUser, got.Role)
		assert.Equal(t, "Hola", got.Content)
	})

	t.Run("AppendRejectsUnknownRole", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		chat, err := s.CreateChat(ctx)
		require.NoError(t, err)

		err = s.AppendMessage(ctx, &domain.Message{ChatID: chat.ID, Role: "agent", Content: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidRole)

		msgs, err := s.ListMessages(ctx, chat.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("GetUnknownMessage", func(t *testing.T) {
		s := open(t)

		_, err := s.GetMessage(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})

	t.Run("ListMessagesOrderedAndScoped", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		a, err := s.CreateChat(ctx)
		require.NoError(t, err)
		b, err := s.CreateChat(ctx)
		require.NoError(t, err)

		roles := []domain.Role{domain.RoleSystem, domain.RoleUser, domain.RoleAssistant, domain.RoleUser}
		var want []domain.MessageID
		for i, role := range roles {
			m := &domain.Message{ChatID: a.ID, Role: role, Content: string(rune('a' + i))}
			require.NoError(t, s.AppendMessage(ctx, m))
			want = append(want, m.ID)

			other := &domain.Message{ChatID: b.ID, Role: domain.RoleUser, Content: "noise"}
			require.NoError(t, s.AppendMessage(ctx, other))
		}

		msgs, err := s.ListMessages(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, msgs, len(roles))
		for i, m := range msgs {
			assert.Equal(t, want[i], m.ID)
			assert.Equal(t, roles[i], m.Role)
			assert.Equal(t, a.ID, m.ChatID)
		}

		again, err := s.ListMessages(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, msgs, again, "reads without writes are idempotent")
	})

	t.Run("ListMessagesEmptyChat", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		chat, err := s.CreateChat(ctx)
		require.NoError(t, err)

		msgs, err := s.ListMessages(ctx, chat.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}
