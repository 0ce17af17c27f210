package conversation

import (
	"context"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/PabloGalante/chatrelay/internal/app/history"
	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

// StreamCompletion relays a reply for a prompt and caller-supplied history
// without touching the store. Events carry no user message id. Unlike
// StreamTurn the provider call follows ctx, since nothing is saved.
func (s *Service) StreamCompletion(ctx context.Context, prompt string, turns []domain.Turn) (iter.Seq[Event], error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.ErrEmptyContent
	}

	normalized, err := history.Normalize(turns)
	if err != nil {
		return nil, err
	}
	hc := history.Context{Turns: normalized}

	var used atomic.Bool
	return func(yield func(Event) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}

		ctx, span := s.tracer.Start(ctx, "conversation.StreamCompletion",
			trace.WithAttributes(attribute.Int("history.turns", len(hc.Turns))))
		defer span.End()

		log := observability.LoggerFromContext(ctx)
		start := time.Now()
		status := observability.StatusError
		out := newSink(yield)
		s.metrics.StreamStarted()
		defer func() {
			s.metrics.StreamFinished(streamKindStateless, status, time.Since(start))
			if out.disconnected {
				s.metrics.ClientDisconnected()
			}
		}()

		if _, err := s.relay(ctx, out, prompt, hc, ""); err != nil {
			log.Error("provider stream failed", "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			out.emit(errorEvent(err))
			return
		}

		out.emit(doneEvent(""))
		status = observability.StatusSuccess
	}, nil
}
