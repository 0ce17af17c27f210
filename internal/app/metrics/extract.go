package metrics

import (
	"encoding/json"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// fragmentPattern matches flat brace fragments. Nested objects are not
// matched as a whole; their innermost flat parts are.
var fragmentPattern = regexp.MustCompile(`\{[^{}]*\}`)

// Fragment parse outcomes, also used as metric labels.
const (
	outcomeStrict    = "strict"
	outcomeRepaired  = "repaired"
	outcomeMalformed = "malformed"
)

// scoreKeys lists the accepted keys per metric. The evaluator persona spells
// satisfaction without the second t.
var scoreKeys = map[domain.MetricKind][]string{
	domain.MetricSatisfaction: {"satisfaction", "satisfacion"},
	domain.MetricPrecision:    {"precision"},
}

// Scores holds the values found in one evaluator reply, in order of
// appearance.
type Scores struct {
	Satisfaction []float64
	Precision    []float64
}

// Extract scans an evaluator reply for score fragments. Malformed fragments
// and fragments with neither score are skipped.
func Extract(reply string) Scores {
	scores, _ := extract(reply)
	return scores
}

func extract(reply string) (Scores, []string) {
	var (
		scores   Scores
		outcomes []string
	)

	for _, raw := range fragmentPattern.FindAllString(reply, -1) {
		obj, outcome := parseFragment(raw)
		outcomes = append(outcomes, outcome)
		if obj == nil {
			continue
		}
		obj = normalizeKeys(obj)

		if v, ok := score(obj, domain.MetricSatisfaction); ok {
			scores.Satisfaction = append(scores.Satisfaction, v)
		}
		if v, ok := score(obj, domain.MetricPrecision); ok {
			scores.Precision = append(scores.Precision, v)
		}
	}

	return scores, outcomes
}

// parseFragment tries strict JSON first and the repaired text second.
func parseFragment(raw string) (map[string]any, string) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj, outcomeStrict
	}
	if err := json.Unmarshal([]byte(repair(raw)), &obj); err == nil {
		return obj, outcomeRepaired
	}
	return nil, outcomeMalformed
}

// score looks the keys up in scoreKeys order, so a fragment carrying both
// spellings always yields the canonical one.
func score(obj map[string]any, kind domain.MetricKind) (float64, bool) {
	for _, want := range scoreKeys[kind] {
		if v, ok := obj[want]; ok {
			return number(v)
		}
	}
	return 0, false
}

// normalizeKeys lowercases and trims keys. On a collision after
// normalization the exact lowercase key wins.
func normalizeKeys(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		k := strings.ToLower(strings.TrimSpace(key))
		if _, taken := out[k]; taken && k != key {
			continue
		}
		out[k] = obj[key]
	}
	return out
}

// number accepts JSON numbers, numeric strings and one-element arrays of
// either. Anything outside [MinScore, MaxScore] is rejected.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []any:
		if len(n) != 1 {
			return 0, false
		}
		return number(n[0])
	default:
		return 0, false
	}

	if math.IsNaN(f) || f < domain.MinScore || f > domain.MaxScore {
		return 0, false
	}
	return f, true
}

// Mean returns the arithmetic mean, or 0 for an empty list.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
