package conversation_test

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatrelay/internal/adapters/storage/memory"
	"github.com/PabloGalante/chatrelay/internal/app/conversation"
	"github.com/PabloGalante/chatrelay/internal/app/persist"
	"github.com/PabloGalante/chatrelay/internal/domain"
)

type providerCall struct {
	prompt  string
	history []domain.Turn
	cold    bool
}

// scriptedProvider streams a fixed list of chunks, optionally failing
// before the chunk at index failAt.
type scriptedProvider struct {
	chunks []string
	failAt int
	err    error

	mu      sync.Mutex
	calls   []providerCall
	drained atomic.Bool
}

func newProvider(chunks ...string) *scriptedProvider {
	return &scriptedProvider{chunks: chunks, failAt: -1}
}

func (p *scriptedProvider) failing(at int, err error) *scriptedProvider {
	p.failAt = at
	p.err = err
	return p
}

func (p *scriptedProvider) Complete(ctx context.Context, prompt string) iter.Seq2[string, error] {
	p.record(providerCall{prompt: prompt, cold: true})
	return p.stream()
}

func (p *scriptedProvider) CompleteWithHistory(ctx context.Context, prompt string, history []domain.Turn) iter.Seq2[string, error] {
	p.record(providerCall{prompt: prompt, history: append([]domain.Turn(nil), history...)})
	return p.stream()
}

func (p *scriptedProvider) record(c providerCall) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
}

func (p *scriptedProvider) lastCall(t *testing.T) providerCall {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.calls, "provider was never called")
	return p.calls[len(p.calls)-1]
}

func (p *scriptedProvider) stream() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for i, c := range p.chunks {
			if i == p.failAt {
				yield("", p.err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if p.failAt == len(p.chunks) {
			yield("", p.err)
			return
		}
		p.drained.Store(true)
	}
}

type fixture struct {
	svc      *conversation.Service
	store    *memory.Store
	writer   *persist.Writer
	provider *scriptedProvider
}

func newFixture(t *testing.T, provider *scriptedProvider, serialize bool) *fixture {
	t.Helper()
	store := memory.NewStore()
	return newFixtureWithStore(t, provider, store, store, serialize)
}

func newFixtureWithStore(t *testing.T, provider *scriptedProvider, store *memory.Store, messages domain.MessageStore, serialize bool) *fixture {
	t.Helper()
	writer := persist.NewWriter(messages, persist.Options{})
	t.Cleanup(func() { _ = writer.Close(context.Background()) })

	svc := conversation.NewService(provider, store, messages, writer, conversation.Options{SerializeTurns: serialize})
	return &fixture{svc: svc, store: store, writer: writer, provider: provider}
}

// flush waits for every scheduled background write.
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.writer.Close(ctx))
}

func (f *fixture) newChat(t *testing.T) domain.ChatID {
	t.Helper()
	chat, err := f.svc.CreateChat(context.Background())
	require.NoError(t, err)
	return chat.ID
}

func (f *fixture) seed(t *testing.T, chatID domain.ChatID, role domain.Role, content string) {
	t.Helper()
	require.NoError(t, f.store.AppendMessage(context.Background(), &domain.Message{
		ChatID: chatID, Role: role, Content: content,
	}))
}

func collect(seq iter.Seq[conversation.Event]) []conversation.Event {
	var out []conversation.Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func TestStreamTurnColdStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newProvider("Hi", " there"), true)
	chatID := f.newChat(t)

	turn, err := f.svc.StreamTurn(ctx, chatID, "Hello")
	require.NoError(t, err)
	require.NotEmpty(t, turn.UserMessage.ID)

	events := collect(turn.Events())
	id := turn.UserMessage.ID
	assert.Equal(t, []conversation.Event{
		{Type: conversation.EventContent, Content: "Hi", UserMessageID: id},
		{Type: conversation.EventContent, Content: " there", UserMessageID: id},
		{Type: conversation.EventDone, UserMessageID: id},
	}, events)

	call := f.provider.lastCall(t)
	assert.True(t, call.cold, "empty history must use Complete")
	assert.Equal(t, "Hello", call.prompt)

	f.flush(t)
	msgs, err := f.store.ListMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hi there", msgs[1].Content)
}

func TestStreamTurnWithHistoryExcludesCurrentMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newProvider("5"), true)
	chatID := f.newChat(t)
	f.seed(t, chatID, domain.RoleUser, "What is 2+2?")
	f.seed(t, chatID, domain.RoleAssistant, "4")

	turn, err := f.svc.StreamTurn(ctx, chatID, "And 2+3?")
	require.NoError(t, err)

	events := collect(turn.Events())
	require.Len(t, events, 2)
	assert.Equal(t, conversation.EventDone, events[1].Type)

	call := f.provider.lastCall(t)
	assert.False(t, call.cold)
	assert.Equal(t, "And 2+3?", call.prompt)
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "What is 2+2?"},
		{Role: domain.RoleAssistant, Content: "4"},
	}, call.history)

	f.flush(t)
	msgs, err := f.store.ListMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "5", msgs[3].Content)
}

func TestStreamTurnProviderFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upstream exploded")
	f := newFixture(t, newProvider("partial", "never").failing(1, boom), true)
	chatID := f.newChat(t)

	turn, err := f.svc.StreamTurn(ctx, chatID, "Hello")
	require.NoError(t, err)

	events := collect(turn.Events())
	require.Len(t, events, 2)
	assert.Equal(t, conversation.EventContent, events[0].Type)
	assert.Equal(t, "partial", events[0].Content)
	assert.Equal(t, conversation.EventError, events[1].Type)
	assert.Contains(t, events[1].Err, "upstream exploded")

	f.flush(t)
	msgs, err := f.store.ListMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "only the user message is stored")
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
}

func TestStreamTurnSkipsEmptyChunks(t *testing.T) {
	f := newFixture(t, newProvider("", "a", "", "b"), true)
	chatID := f.newChat(t)

	turn, err := f.svc.StreamTurn(context.Background(), chatID, "hi")
	require.NoError(t, err)

	events := collect(turn.Events())
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Content)
	assert.Equal(t, "b", events[1].Content)
}

func TestStreamTurnUnknownChat(t *testing.T) {
	f := newFixture(t, newProvider("x"), true)

	_, err := f.svc.StreamTurn(context.Background(), "missing", "Hello")
	require.ErrorIs(t, err, domain.ErrChatNotFound)

	f.provider.mu.Lock()
	defer f.provider.mu.Unlock()
	assert.Empty(t, f.provider.calls)
}

func TestStreamTurnRejectsBlankText(t *testing.T) {
	f := newFixture(t, newProvider("x"), true)
	chatID := f.newChat(t)

	_, err := f.svc.StreamTurn(context.Background(), chatID, "   ")
	require.ErrorIs(t, err, domain.ErrEmptyContent)
}

type failingAppend struct {
	*memory.Store
	err error
}

func (s failingAppend) AppendMessage(ctx context.Context, msg *domain.Message) error {
	return s.err
}

func TestStreamTurnUserWriteFailure(t *testing.T) {
	store := memory.NewStore()
	messages := failingAppend{Store: store, err: errors.New("disk full")}
	f := newFixtureWithStore(t, newProvider("x"), store, messages, true)
	chatID := f.newChat(t)

	_, err := f.svc.StreamTurn(context.Background(), chatID, "Hello")
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "append user message", perr.Op)

	// the chat must not stay locked after a failed turn
	_, err = f.svc.StreamTurn(context.Background(), chatID, "again")
	require.ErrorAs(t, err, &perr)
}

type failingList struct {
	*memory.Store
}

func (s failingList) ListMessages(ctx context.Context, chatID domain.ChatID) ([]*domain.Message, error) {
	return nil, errors.New("read timeout")
}

func TestStreamTurnHistoryFailureIsInStream(t *testing.T) {
	store := memory.NewStore()
	f := newFixtureWithStore(t, newProvider("x"), store, failingList{Store: store}, true)
	chatID := f.newChat(t)

	turn, err := f.svc.StreamTurn(context.Background(), chatID, "Hello")
	require.NoError(t, err)

	events := collect(turn.Events())
	require.Len(t, events, 1)
	assert.Equal(t, conversation.EventError, events[0].Type)
	assert.Contains(t, events[0].Err, "read timeout")
}

func TestStreamTurnClientDisconnectStillPersists(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, newProvider("one", " two", " three"), true)
	chatID := f.newChat(t)

	turn, err := f.svc.StreamTurn(ctx, chatID, "Hello")
	require.NoError(t, err)

	var got []conversation.Event
	for ev := range turn.Events() {
		got = append(got, ev)
		cancel()
		break
	}
	require.Len(t, got, 1)
	assert.True(t, f.provider.drained.Load(), "provider must be drained after the client leaves")

	f.flush(t)
	msgs, err := f.store.ListMessages(context.Background(), chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one two three", msgs[1].Content)
}

func TestTurnEventsAreSingleUse(t *testing.T) {
	f := newFixture(t, newProvider("a"), true)
	chatID := f.newChat(t)

	turn, err := f.svc.StreamTurn(context.Background(), chatID, "Hello")
	require.NoError(t, err)

	assert.Len(t, collect(turn.Events()), 2)
	assert.Empty(t, collect(turn.Events()))
}

func TestStreamTurnSerializesPerChat(t *testing.T) {
	f := newFixture(t, newProvider("ok"), true)
	chatID := f.newChat(t)
	otherID := f.newChat(t)

	first, err := f.svc.StreamTurn(context.Background(), chatID, "first")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.svc.StreamTurn(waitCtx, chatID, "second")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// other chats are not blocked
	other, err := f.svc.StreamTurn(context.Background(), otherID, "elsewhere")
	require.NoError(t, err)
	collect(other.Events())

	collect(first.Events())

	second, err := f.svc.StreamTurn(context.Background(), chatID, "second")
	require.NoError(t, err)
	collect(second.Events())

	f.flush(t)
	msgs, err := f.store.ListMessages(context.Background(), chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"first", "ok", "second", "ok"},
		[]string{msgs[0].Content, msgs[1].Content, msgs[2].Content, msgs[3].Content})
}

func TestStreamTurnWithoutSerialization(t *testing.T) {
	f := newFixture(t, newProvider("ok"), false)
	chatID := f.newChat(t)

	first, err := f.svc.StreamTurn(context.Background(), chatID, "first")
	require.NoError(t, err)
	second, err := f.svc.StreamTurn(context.Background(), chatID, "second")
	require.NoError(t, err)

	collect(first.Events())
	collect(second.Events())
}

func TestStreamCompletion(t *testing.T) {
	f := newFixture(t, newProvider("a", "b"), true)

	seq, err := f.svc.StreamCompletion(context.Background(), "prompt", []domain.Turn{
		{Role: "user", Content: "earlier"},
		{Role: "model", Content: "reply"},
		{Role: "user", Content: "  "},
	})
	require.NoError(t, err)

	events := collect(seq)
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Empty(t, ev.UserMessageID)
	}
	assert.Equal(t, conversation.EventDone, events[2].Type)

	call := f.provider.lastCall(t)
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "earlier"},
		{Role: domain.RoleAssistant, Content: "reply"},
	}, call.history)

	chats, err := f.store.ListChats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chats, "stateless streams never touch the store")
}

func TestStreamCompletionColdStart(t *testing.T) {
	f := newFixture(t, newProvider("a"), true)

	seq, err := f.svc.StreamCompletion(context.Background(), "prompt", nil)
	require.NoError(t, err)
	collect(seq)

	assert.True(t, f.provider.lastCall(t).cold)
}

func TestStreamCompletionRejectsBadInput(t *testing.T) {
	f := newFixture(t, newProvider("a"), true)

	_, err := f.svc.StreamCompletion(context.Background(), "", nil)
	require.ErrorIs(t, err, domain.ErrEmptyContent)

	_, err = f.svc.StreamCompletion(context.Background(), "hi", []domain.Turn{{Role: "narrator", Content: "x"}})
	require.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestListChatsSummaries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newProvider(), true)

	older := f.newChat(t)
	f.seed(t, older, domain.RoleUser, "first")
	f.seed(t, older, domain.RoleAssistant, "second")
	time.Sleep(2 * time.Millisecond)
	newer := f.newChat(t)

	summaries, err := f.svc.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, newer, summaries[0].Chat.ID)
	assert.Zero(t, summaries[0].MessageCount)
	assert.Nil(t, summaries[0].LastMessage)

	assert.Equal(t, older, summaries[1].Chat.ID)
	assert.Equal(t, 2, summaries[1].MessageCount)
	require.NotNil(t, summaries[1].LastMessage)
	assert.Equal(t, "second", summaries[1].LastMessage.Content)
}

func TestListMessagesUnknownChat(t *testing.T) {
	f := newFixture(t, newProvider(), true)

	_, err := f.svc.ListMessages(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrChatNotFound)

	_, err = f.svc.GetMessage(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrMessageNotFound)
}
