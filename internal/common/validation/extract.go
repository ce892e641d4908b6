// internal/common/validation/extract.go
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ExtractionMethod records which rung of the extraction ladder produced the
// candidate payload. Callers log it so parse failures can be traced back to
// the response shape that caused them.
type ExtractionMethod string

const (
	MethodDirect      ExtractionMethod = "direct"
	MethodFencedJSON  ExtractionMethod = "fenced_json"
	MethodFencedPlain ExtractionMethod = "fenced_plain"
	MethodBraceScan   ExtractionMethod = "brace_scan"
	MethodNone        ExtractionMethod = "none"
)

var (
	fencedJSONPattern  = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedPlainPattern = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

// ExtractJSONObject pulls a JSON object out of free-form generated text.
// It tries, in order: the whole payload as JSON, a ```json fenced block,
// any ``` fenced block, and finally the largest balanced {...} span.
// Rungs are attempted strictly in order and the first candidate that
// unmarshals wins.
func ExtractJSONObject(raw string) (string, ExtractionMethod, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", MethodNone, fmt.Errorf("empty payload")
	}

	if isValidJSONObject(trimmed) {
		return trimmed, MethodDirect, nil
	}

	if m := fencedJSONPattern.FindStringSubmatch(trimmed); m != nil {
		candidate := strings.TrimSpace(m[1])
		if isValidJSONObject(candidate) {
			return candidate, MethodFencedJSON, nil
		}
	}

	if m := fencedPlainPattern.FindStringSubmatch(trimmed); m != nil {
		candidate := strings.TrimSpace(m[1])
		if isValidJSONObject(candidate) {
			return candidate, MethodFencedPlain, nil
		}
	}

	if candidate := largestBalancedObject(trimmed); candidate != "" {
		if isValidJSONObject(candidate) {
			return candidate, MethodBraceScan, nil
		}
	}

	return "", MethodNone, fmt.Errorf("no JSON object found in payload")
}

func isValidJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var probe map[string]interface{}
	return json.Unmarshal([]byte(s), &probe) == nil
}

// largestBalancedObject returns the widest {...} span whose braces balance.
// Braces inside JSON strings are skipped so embedded prose like
// `{"note": "use {placeholders}"}` does not break the scan.
func largestBalancedObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	best := ""

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if len(candidate) > len(best) {
					best = candidate
				}
				// Next object may start later in the text.
				next := strings.Index(s[i+1:], "{")
				if next < 0 {
					return best
				}
				start = i + 1 + next
				i = start - 1
			}
		}
	}

	return best
}

// TruncateString caps a string at max runes, appending an ellipsis marker
// when anything was cut. Out-of-bound field values are truncated rather than
// rejected so one verbose field never fails an otherwise valid payload.
func TruncateString(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
