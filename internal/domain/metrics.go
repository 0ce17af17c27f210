package domain

// MetricKind names one of the two scores the evaluator produces.
type MetricKind string

const (
	MetricSatisfaction MetricKind = "satisfaction"
	MetricPrecision    MetricKind = "precision"
)

const (
	MinScore = 0
	MaxScore = 100
)

// MetricRecord is one score extracted from the evaluator's reply to a message.
type MetricRecord struct {
	MessageID MessageID  `json:"message_id"`
	Role      Role       `json:"role"`
	Kind      MetricKind `json:"kind"`
	Value     float64    `json:"value"`
}

// Analysis aggregates the scores of every message in a chat.
type Analysis struct {
	ChatID           ChatID    `json:"chat_id"`
	Satisfaction     []float64 `json:"satisfaction"`
	Precision        []float64 `json:"precision"`
	SatisfactionMean float64   `json:"satisfaction_mean"`
	PrecisionMean    float64   `json:"precision_mean"`

	Records           []MetricRecord `json:"records"`
	Evaluated         int            `json:"evaluated"`
	EvaluatorFailures int            `json:"evaluator_failures"`
}
