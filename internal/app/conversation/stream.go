package conversation

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/PabloGalante/chatrelay/internal/app/history"
	"github.com/PabloGalante/chatrelay/internal/app/persist"
	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

const (
	streamKindPersisted = "persisted"
	streamKindStateless = "stateless"
)

// Turn is a user turn that has been persisted and is ready to stream.
type Turn struct {
	// UserMessage is the stored user message. Its ID is on every event.
	UserMessage *domain.Message

	events iter.Seq[Event]
}

// Events yields content events followed by exactly one done or error event.
// It can be ranged once; the caller must range it, or the chat stays locked
// when turn serialization is on.
func (t *Turn) Events() iter.Seq[Event] {
	return t.events
}

// StreamTurn persists the user message and prepares the reply stream.
//
// Unknown chats and failed user writes are returned as errors before any
// event exists. Everything after that is reported in-stream. The provider
// call and the assistant write are detached from ctx cancellation, so a
// client that goes away stops receiving events but the turn still finishes
// and is stored.
func (s *Service) StreamTurn(ctx context.Context, chatID domain.ChatID, text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyContent
	}

	log := observability.LoggerFromContext(ctx).With("chat_id", chatID)

	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		return nil, storeError("get chat", err)
	}

	release, err := s.locks.acquire(ctx, chatID)
	if err != nil {
		return nil, err
	}

	userMsg := &domain.Message{
		ChatID:    chatID,
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: s.now(),
	}
	if err := s.messages.AppendMessage(ctx, userMsg); err != nil {
		release()
		log.Error("failed to append user message", "error", err)
		return nil, storeError("append user message", err)
	}
	log.Info("user message persisted", "user_message_id", userMsg.ID)

	return &Turn{
		UserMessage: userMsg.Clone(),
		events:      s.turnEvents(ctx, userMsg, release),
	}, nil
}

func (s *Service) turnEvents(reqCtx context.Context, userMsg *domain.Message, release func()) iter.Seq[Event] {
	var used atomic.Bool

	return func(yield func(Event) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}

		ctx, span := s.tracer.Start(context.WithoutCancel(reqCtx), "conversation.StreamTurn",
			trace.WithAttributes(
				attribute.String("chat.id", string(userMsg.ChatID)),
				attribute.String("message.id", string(userMsg.ID)),
			))
		defer span.End()

		log := observability.LoggerFromContext(ctx).With(
			"chat_id", userMsg.ChatID,
			"user_message_id", userMsg.ID,
		)

		start := time.Now()
		status := observability.StatusError
		out := newSink(yield)
		s.metrics.StreamStarted()
		defer func() {
			s.metrics.StreamFinished(streamKindPersisted, status, time.Since(start))
			if out.disconnected {
				s.metrics.ClientDisconnected()
				log.Info("client went away mid-stream")
			}
		}()

		fail := func(err error) {
			release()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			out.emit(errorEvent(err))
		}

		hc, err := s.history.Load(ctx, userMsg.ChatID, userMsg.ID)
		if err != nil {
			log.Error("failed to load history", "error", err)
			fail(err)
			return
		}
		span.SetAttributes(
			attribute.Int("history.turns", len(hc.Turns)),
			attribute.Bool("history.cold_start", hc.ColdStart()),
		)

		reply, err := s.relay(ctx, out, userMsg.Content, hc, userMsg.ID)
		if err != nil {
			log.Error("provider stream failed", "error", err)
			fail(err)
			return
		}

		out.emit(doneEvent(userMsg.ID))
		status = observability.StatusSuccess

		assistant := &domain.Message{
			ChatID:    userMsg.ChatID,
			Role:      domain.RoleAssistant,
			Content:   reply,
			CreatedAt: s.now(),
		}
		job := persist.Job{
			Message: assistant,
			Done:    func(error) { release() },
		}
		if err := s.writer.Enqueue(ctx, job); err != nil {
			release()
			log.Error("failed to schedule assistant message", "error", err)
			return
		}

		log.Info("turn completed", "reply_bytes", len(reply), "duration_ms", time.Since(start).Milliseconds())
	}
}

// relay forwards every non-empty chunk from the provider and returns the
// concatenated reply. An empty history always goes to Complete.
func (s *Service) relay(ctx context.Context, out *sink, prompt string, hc history.Context, userMessageID domain.MessageID) (string, error) {
	var stream iter.Seq2[string, error]
	if hc.ColdStart() {
		s.metrics.ColdStart()
		stream = s.provider.Complete(ctx, prompt)
	} else {
		stream = s.provider.CompleteWithHistory(ctx, prompt, hc.Turns)
	}

	var (
		reply strings.Builder
		first = true
		start = time.Now()
	)
	for chunk, err := range stream {
		if err != nil {
			return "", asProviderError(err)
		}
		if chunk == "" {
			continue
		}
		if first {
			s.metrics.FirstChunk(time.Since(start))
			first = false
		}
		s.metrics.Chunk()
		reply.WriteString(chunk)
		out.emit(contentEvent(chunk, userMessageID))
	}
	return reply.String(), nil
}

func asProviderError(err error) error {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return err
	}
	return &domain.ProviderError{Err: err}
}
