package history_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatrelay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chatrelay/internal/app/history"
	"github.com/PabloGalante/chatrelay/internal/domain"
)

func seed(t *testing.T, store *memory.Store, chatID domain.ChatID, turns ...domain.Turn) []domain.MessageID {
	t.Helper()
	var ids []domain.MessageID
	for _, turn := range turns {
		m := &domain.Message{ChatID: chatID, Role: turn.Role, Content: turn.Content}
		require.NoError(t, store.AppendMessage(context.Background(), m))
		ids = append(ids, m.ID)
	}
	return ids
}

func TestLoadEmptyChatIsColdStart(t *testing.T) {
	store := memory.NewStore()
	chat, err := store.CreateChat(context.Background())
	require.NoError(t, err)

	hc, err := history.NewAssembler(store).Load(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.True(t, hc.ColdStart())
	assert.Equal(t, chat.ID, hc.ChatID)
}

func TestLoadPreservesStoreOrder(t *testing.T) {
	store := memory.NewStore()
	chat, err := store.CreateChat(context.Background())
	require.NoError(t, err)

	turns := []domain.Turn{
		{Role: domain.RoleUser, Content: "Hola"},
		{Role: domain.RoleAssistant, Content: "Hola, ¿cómo te llamas?"},
		{Role: domain.RoleUser, Content: "Juan"},
	}
	seed(t, store, chat.ID, turns...)

	hc, err := history.NewAssembler(store).Load(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.False(t, hc.ColdStart())
	assert.Equal(t, turns, hc.Turns)
}

func TestLoadExcludesInFlightMessage(t *testing.T) {
	store := memory.NewStore()
	chat, err := store.CreateChat(context.Background())
	require.NoError(t, err)

	ids := seed(t, store, chat.ID, domain.Turn{Role: domain.RoleUser, Content: "first"})

	hc, err := history.NewAssembler(store).Load(context.Background(), chat.ID, ids[0])
	require.NoError(t, err)
	assert.True(t, hc.ColdStart())
}

type failingStore struct{ domain.MessageStore }

func (failingStore) ListMessages(context.Context, domain.ChatID) ([]*domain.Message, error) {
	return nil, errors.New("store unavailable")
}

func TestLoadPropagatesStoreFailure(t *testing.T) {
	_, err := history.NewAssembler(failingStore{}).Load(context.Background(), "chat")

	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "load history", perr.Op)
}

func TestNormalize(t *testing.T) {
	out, err := history.Normalize([]domain.Turn{
		{Role: "user", Content: "hi"},
		{Role: "model", Content: "hello"},
		{Role: "user", Content: "   "},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}, out)

	_, err = history.Normalize([]domain.Turn{{Role: "robot", Content: "x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}
