package domain

// Chat groups an ordered sequence of messages. Its ID is issued by the store.
type Chat struct {
	ID        ChatID
	CreatedAt Timestamp
}

// Message is a single immutable entry in a chat timeline.
type Message struct {
	ID        MessageID
	ChatID    ChatID
	Role      Role
	Content   string
	CreatedAt Timestamp
}

// Clone returns a copy so callers cannot mutate a stored record.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

// Turn is one (role, content) pair of conversation history as handed to a
// provider.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatSummary is a chat plus a preview of its latest message.
type ChatSummary struct {
	Chat         *Chat
	MessageCount int
	LastMessage  *Message
}
