package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  Scores
	}{
		{
			name:  "strict json",
			reply: `{"precision": 90}`,
			want:  Scores{Precision: []float64{90}},
		},
		{
			name:  "fragment inside prose",
			reply: `Analysis: {"satisfaction": 85} done`,
			want:  Scores{Satisfaction: []float64{85}},
		},
		{
			name:  "alias and surrounding prose",
			reply: "Here is the evaluation:\n```json\n{\"satisfacion\": 72}\n```\nThanks.",
			want:  Scores{Satisfaction: []float64{72}},
		},
		{
			name:  "single element array",
			reply: `{"precision": [85]}`,
			want:  Scores{Precision: []float64{85}},
		},
		{
			name:  "python style dict",
			reply: `{'satisfaction': 40, 'precision': 60,}`,
			want:  Scores{Satisfaction: []float64{40}, Precision: []float64{60}},
		},
		{
			name:  "bare keys",
			reply: `{precision: 55}`,
			want:  Scores{Precision: []float64{55}},
		},
		{
			name:  "numeric string",
			reply: `{"precision": "77"}`,
			want:  Scores{Precision: []float64{77}},
		},
		{
			name:  "several fragments keep order",
			reply: `{"precision": 10} then {"precision": 20} and {"satisfaction": 30}`,
			want:  Scores{Satisfaction: []float64{30}, Precision: []float64{10, 20}},
		},
		{
			name:  "malformed fragment skipped",
			reply: `{"precision": 90 {"precision": oops} {"precision": 80}`,
			want:  Scores{Precision: []float64{80}},
		},
		{
			name:  "fragment without scores ignored",
			reply: `{"note": "fine"}`,
			want:  Scores{},
		},
		{
			name:  "out of range dropped",
			reply: `{"precision": 140} {"satisfaction": -3} {"precision": [1, 2]}`,
			want:  Scores{},
		},
		{
			name:  "nested object yields its inner fragment",
			reply: `{"scores": {"satisfaction": 80}}`,
			want:  Scores{Satisfaction: []float64{80}},
		},
		{
			name:  "outer object with nested member is never matched whole",
			reply: `{"satisfaction": 70, "meta": {"x": 1}}`,
			want:  Scores{},
		},
		{
			name:  "canonical key preferred over alias",
			reply: `{"satisfaction": 90, "satisfacion": 10}`,
			want:  Scores{Satisfaction: []float64{90}},
		},
		{
			name:  "keys are case insensitive",
			reply: `{"Precision": 64}`,
			want:  Scores{Precision: []float64{64}},
		},
		{
			name:  "no fragments",
			reply: "I cannot evaluate this message.",
			want:  Scores{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Extract(tc.reply))
		})
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	for range 200 {
		got := Extract(`{"satisfacion": 10, "satisfaction": 90, "SATISFACTION": 5, " Satisfaction": 7}`)
		require.Equal(t, []float64{90}, got.Satisfaction)
	}
}

func TestExtractReportsOutcomes(t *testing.T) {
	_, outcomes := extract(`{"precision": 1} {'precision': 2} {precision 3}`)
	assert.Equal(t, []string{outcomeStrict, outcomeRepaired, outcomeMalformed}, outcomes)
}

func TestRepair(t *testing.T) {
	assert.JSONEq(t, `{"ok": true, "v": null}`, repair(`{'ok': True, 'v': None,}`))
	assert.JSONEq(t, `{"precision": 80}`, repair(`{“precision”: 80}`))
}

func TestMean(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.Zero(t, Mean([]float64{}))
	assert.Equal(t, 70.0, Mean([]float64{80, 60}))
	assert.InDelta(t, 33.333, Mean([]float64{0, 0, 100}), 0.001)
}
