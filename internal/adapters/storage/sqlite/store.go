package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL REFERENCES chats(id),
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, id);
`

// Store keeps chats and messages in a single SQLite file. IDs are the
// decimal row ids.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path, ensuring that the parent
// directory exists, and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db at %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db at %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// parseRowID returns false for ids that cannot name a row.
func parseRowID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func formatRowID(n int64) string {
	return strconv.FormatInt(n, 10)
}

// ─────────────────────────────────────────
// ChatStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateChat(ctx context.Context) (*domain.Chat, error) {
	now := s.now()

	res, err := s.db.ExecContext(ctx, `INSERT INTO chats (created_at) VALUES (?)`, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("sqlite CreateChat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite CreateChat last id: %w", err)
	}

	return &domain.Chat{ID: domain.ChatID(formatRowID(id)), CreatedAt: now}, nil
}

func (s *Store) GetChat(ctx context.Context, id domain.ChatID) (*domain.Chat, error) {
	rowID, ok := parseRowID(string(id))
	if !ok {
		return nil, domain.ErrChatNotFound
	}

	var createdAt int64
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM chats WHERE id = ?`, rowID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite GetChat: %w", err)
	}

	return &domain.Chat{ID: id, CreatedAt: time.Unix(0, createdAt)}, nil
}

func (s *Store) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at FROM chats ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite ListChats: %w", err)
	}
	defer rows.Close()

	var out []*domain.Chat
	for rows.Next() {
		var id, createdAt int64
		if err := rows.Scan(&id, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite ListChats scan: %w", err)
		}
		out = append(out, &domain.Chat{
			ID:        domain.ChatID(formatRowID(id)),
			CreatedAt: time.Unix(0, createdAt),
		})
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRole, msg.Role)
	}
	chatID, ok := parseRowID(string(msg.ChatID))
	if !ok {
		return domain.ErrChatNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		chatID, string(msg.Role), msg.Content, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite AppendMessage: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite AppendMessage last id: %w", err)
	}
	msg.ID = domain.MessageID(formatRowID(id))
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	rowID, ok := parseRowID(string(id))
	if !ok {
		return nil, domain.ErrMessageNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages WHERE id = ?`, rowID)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite GetMessage: %w", err)
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID domain.ChatID) ([]*domain.Message, error) {
	rowID, ok := parseRowID(string(chatID))
	if !ok {
		return []*domain.Message{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id = ? ORDER BY id ASC`, rowID)
	if err != nil {
		return nil, fmt.Errorf("sqlite ListMessages: %w", err)
	}
	defer rows.Close()

	out := []*domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite ListMessages scan: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc scanner) (*domain.Message, error) {
	var (
		id, chatID, createdAt int64
		role, content         string
	)
	if err := sc.Scan(&id, &chatID, &role, &content, &createdAt); err != nil {
		return nil, err
	}

	r, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}

	return &domain.Message{
		ID:        domain.MessageID(formatRowID(id)),
		ChatID:    domain.ChatID(formatRowID(chatID)),
		Role:      r,
		Content:   content,
		CreatedAt: time.Unix(0, createdAt),
	}, nil
}
