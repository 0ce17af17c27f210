package memory

import "context"

// Store bundles the chat and message stores behind domain.Store.
// It is NOT persistent and is only suitable for development / local mode.
type Store struct {
	*ChatStore
	*MessageStore
}

func NewStore() *Store {
	return &Store{
		ChatStore:    NewChatStore(),
		MessageStore: NewMessageStore(),
	}
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}
