// Package metrics replays a chat through an evaluator and aggregates the
// satisfaction and precision scores it hands back.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

const defaultConcurrency = 4

// Service holds the logic of scoring a chat.
type Service struct {
	evaluator   domain.Evaluator
	chats       domain.ChatStore
	messages    domain.MessageStore
	concurrency int
	metrics     *observability.Metrics
	tracer      trace.Tracer
}

type Options struct {
	// Concurrency caps evaluator calls in flight. Defaults to 4.
	Concurrency int
	Metrics     *observability.Metrics
}

func NewService(evaluator domain.Evaluator, chats domain.ChatStore, messages domain.MessageStore, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Service{
		evaluator:   evaluator,
		chats:       chats,
		messages:    messages,
		concurrency: opts.Concurrency,
		metrics:     opts.Metrics,
		tracer:      otel.Tracer("github.com/PabloGalante/chatrelay/internal/app/metrics"),
	}
}

// Prompt is what the evaluator sees for one message.
func Prompt(m *domain.Message) string {
	return fmt.Sprintf("Written by %s: %s", m.Role, m.Content)
}

type evaluation struct {
	scores Scores
	err    error
}

// Analyze evaluates every message of the chat once. A failed evaluator call
// only costs that message its scores. Lists keep message order.
func (s *Service) Analyze(ctx context.Context, chatID domain.ChatID) (*domain.Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "metrics.Analyze",
		trace.WithAttributes(attribute.String("chat.id", string(chatID))))
	defer span.End()

	log := observability.LoggerFromContext(ctx).With("chat_id", chatID)
	start := time.Now()

	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		if domain.IsNotFound(err) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "get chat", Err: err}
	}

	msgs, err := s.messages.ListMessages(ctx, chatID)
	if err != nil {
		log.Error("failed to load messages", "error", err)
		return nil, &domain.PersistenceError{Op: "list messages", Err: err}
	}
	log.Info("analysis started", "message_count", len(msgs))

	results := make([]evaluation, len(msgs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, m := range msgs {
		g.Go(func() error {
			results[i] = s.evaluate(ctx, m)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyzing chat %s: %w", chatID, err)
	}

	analysis := &domain.Analysis{
		ChatID:       chatID,
		Satisfaction: []float64{},
		Precision:    []float64{},
		Records:      []domain.MetricRecord{},
	}
	for i, r := range results {
		if r.err != nil {
			analysis.EvaluatorFailures++
			continue
		}
		analysis.Evaluated++

		m := msgs[i]
		for _, v := range r.scores.Satisfaction {
			analysis.Satisfaction = append(analysis.Satisfaction, v)
			analysis.Records = append(analysis.Records, domain.MetricRecord{
				MessageID: m.ID, Role: m.Role, Kind: domain.MetricSatisfaction, Value: v,
			})
		}
		for _, v := range r.scores.Precision {
			analysis.Precision = append(analysis.Precision, v)
			analysis.Records = append(analysis.Records, domain.MetricRecord{
				MessageID: m.ID, Role: m.Role, Kind: domain.MetricPrecision, Value: v,
			})
		}
	}
	analysis.SatisfactionMean = Mean(analysis.Satisfaction)
	analysis.PrecisionMean = Mean(analysis.Precision)

	span.SetAttributes(
		attribute.Int("analysis.evaluated", analysis.Evaluated),
		attribute.Int("analysis.failures", analysis.EvaluatorFailures),
	)
	log.Info("analysis finished",
		"evaluated", analysis.Evaluated,
		"evaluator_failures", analysis.EvaluatorFailures,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return analysis, nil
}

func (s *Service) evaluate(ctx context.Context, m *domain.Message) evaluation {
	reply, err := s.evaluator.Evaluate(ctx, Prompt(m))
	if err != nil {
		s.metrics.Evaluation(observability.StatusError)
		observability.LoggerFromContext(ctx).Warn("evaluator failed",
			"message_id", m.ID,
			"error", err,
		)
		return evaluation{err: err}
	}
	s.metrics.Evaluation(observability.StatusSuccess)

	scores, outcomes := extract(reply)
	for _, o := range outcomes {
		s.metrics.Fragment(o)
	}
	return evaluation{scores: scores}
}
