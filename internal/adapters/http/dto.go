package httpadapter

import (
	"time"
	"unicode/utf8"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

const previewLength = 100

type messageRequest struct {
	Content string `json:"content"`
}

type contextMessageRequest struct {
	Content string        `json:"content"`
	Context []domain.Turn `json:"context"`
}

type chatResponse struct {
	ID       string    `json:"id"`
	Datetime time.Time `json:"datetime"`
}

type chatSummaryResponse struct {
	ID           string           `json:"id"`
	Datetime     time.Time        `json:"datetime"`
	MessageCount int              `json:"message_count"`
	LastMessage  *previewResponse `json:"last_message"`
}

type previewResponse struct {
	Content  string    `json:"content"`
	Datetime time.Time `json:"datetime"`
	Role     string    `json:"role"`
}

type messageResponse struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chat_id"`
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	Datetime time.Time `json:"datetime"`
}

type analysisResponse struct {
	ChatID            string                `json:"chat_id"`
	Satisfaction      []float64             `json:"satisfaction"`
	Precision         []float64             `json:"precision"`
	SatisfactionMean  float64               `json:"satisfaction_mean"`
	PrecisionMean     float64               `json:"precision_mean"`
	Records           []domain.MetricRecord `json:"records"`
	Evaluated         int                   `json:"evaluated"`
	EvaluatorFailures int                   `json:"evaluator_failures"`
}

func toChatResponse(c *domain.Chat) chatResponse {
	return chatResponse{ID: string(c.ID), Datetime: c.CreatedAt}
}

func toChatSummaryResponse(s domain.ChatSummary) chatSummaryResponse {
	out := chatSummaryResponse{
		ID:           string(s.Chat.ID),
		Datetime:     s.Chat.CreatedAt,
		MessageCount: s.MessageCount,
	}
	if m := s.LastMessage; m != nil {
		out.LastMessage = &previewResponse{
			Content:  preview(m.Content),
			Datetime: m.CreatedAt,
			Role:     m.Role.String(),
		}
	}
	return out
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:       string(m.ID),
		ChatID:   string(m.ChatID),
		Role:     m.Role.String(),
		Content:  m.Content,
		Datetime: m.CreatedAt,
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toAnalysisResponse(a *domain.Analysis) analysisResponse {
	return analysisResponse{
		ChatID:            string(a.ChatID),
		Satisfaction:      a.Satisfaction,
		Precision:         a.Precision,
		SatisfactionMean:  a.SatisfactionMean,
		PrecisionMean:     a.PrecisionMean,
		Records:           a.Records,
		Evaluated:         a.Evaluated,
		EvaluatorFailures: a.EvaluatorFailures,
	}
}

// preview cuts content to previewLength characters plus an ellipsis.
func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "..."
}
