package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

// Store keeps chats and messages in two MongoDB collections. IDs are
// ObjectID hex strings.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

// NewStore connects to uri and verifies the connection with a ping.
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		return nil, fmt.Errorf("database name is required for mongo store")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(database),
		now:    time.Now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) chats() *mongo.Collection {
	return s.db.Collection(chatsCollection)
}

func (s *Store) messages() *mongo.Collection {
	return s.db.Collection(messagesCollection)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.messages().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "datetime", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("creating messages index: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// Mongo Types
// ─────────────────────────────────────────

type chatDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Datetime time.Time          `bson:"datetime"`
}

type messageDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	ChatID   primitive.ObjectID `bson:"chat_id"`
	Role     string             `bson:"role"`
	Content  string             `bson:"content"`
	Datetime time.Time          `bson:"datetime"`
}

func (d messageDoc) toDomain() (*domain.Message, error) {
	role, err := domain.ParseRole(d.Role)
	if err != nil {
		return nil, err
	}
	return &domain.Message{
		ID:        domain.MessageID(d.ID.Hex()),
		ChatID:    domain.ChatID(d.ChatID.Hex()),
		Role:      role,
		Content:   d.Content,
		CreatedAt: d.Datetime,
	}, nil
}

// ─────────────────────────────────────────
// ChatStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateChat(ctx context.Context) (*domain.Chat, error) {
	doc := chatDoc{Datetime: s.now().UTC().Truncate(time.Millisecond)}

	res, err := s.chats().InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("mongo CreateChat: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("mongo CreateChat: unexpected id type %T", res.InsertedID)
	}
	return &domain.Chat{ID: domain.ChatID(oid.Hex()), CreatedAt: doc.Datetime}, nil
}

func (s *Store) GetChat(ctx context.Context, id domain.ChatID) (*domain.Chat, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return nil, domain.ErrChatNotFound
	}

	var doc chatDoc
	err = s.chats().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo GetChat: %w", err)
	}

	return &domain.Chat{ID: id, CreatedAt: doc.Datetime}, nil
}

func (s *Store) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "datetime", Value: -1}, {Key: "_id", Value: -1}})

	cur, err := s.chats().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo ListChats: %w", err)
	}
	defer cur.Close(ctx)

	var docs []chatDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo ListChats decode: %w", err)
	}

	out := make([]*domain.Chat, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.Chat{ID: domain.ChatID(d.ID.Hex()), CreatedAt: d.Datetime})
	}
	return out, nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

// AppendMessage is a single-document insert; mongo's per-document atomicity
// is the only write guarantee relied on.
func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRole, msg.Role)
	}
	chatOID, err := primitive.ObjectIDFromHex(string(msg.ChatID))
	if err != nil {
		return domain.ErrChatNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Millisecond)

	doc := messageDoc{
		ChatID:   chatOID,
		Role:     string(msg.Role),
		Content:  msg.Content,
		Datetime: msg.CreatedAt,
	}

	res, err := s.messages().InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("mongo AppendMessage: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("mongo AppendMessage: unexpected id type %T", res.InsertedID)
	}
	msg.ID = domain.MessageID(oid.Hex())
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return nil, domain.ErrMessageNotFound
	}

	var doc messageDoc
	err = s.messages().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo GetMessage: %w", err)
	}
	return doc.toDomain()
}

func (s *Store) ListMessages(ctx context.Context, chatID domain.ChatID) ([]*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(string(chatID))
	if err != nil {
		return []*domain.Message{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "datetime", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.messages().Find(ctx, bson.M{"chat_id": oid}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo ListMessages: %w", err)
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo ListMessages decode: %w", err)
		}
		msg, err := doc.toDomain()
		if err != nil {
			return nil, fmt.Errorf("mongo ListMessages: %w", err)
		}
		out = append(out, msg)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo ListMessages cursor: %w", err)
	}
	return out, nil
}
