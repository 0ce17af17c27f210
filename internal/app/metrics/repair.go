package metrics

import (
	"regexp"
	"strings"
)

var (
	bareKeyPattern       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	pythonLiteralPattern = regexp.MustCompile(`\b(True|False|None)\b`)

	quoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", `'`, "’", `'`,
	)
)

var pythonLiterals = map[string]string{
	"True":  "true",
	"False": "false",
	"None":  "null",
}

// repair rewrites the usual near-JSON an LLM produces into JSON: typographic
// and single quotes become double quotes, bare keys get quoted, trailing
// commas go away and Python literals are lowered. The result is only ever
// handed to a JSON decoder.
func repair(raw string) string {
	s := quoteReplacer.Replace(raw)
	s = strings.ReplaceAll(s, `'`, `"`)
	s = bareKeyPattern.ReplaceAllString(s, `$1"$2":`)
	s = trailingCommaPattern.ReplaceAllString(s, `$1`)
	s = pythonLiteralPattern.ReplaceAllStringFunc(s, func(lit string) string {
		return pythonLiterals[lit]
	})
	return s
}
