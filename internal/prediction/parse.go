package prediction

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

var codeFence = regexp.MustCompile("```(?:json|JSON)?\\n?|\\n?```")

// ParseAnswer isolates the first balanced JSON object in a free-form model
// answer and decodes it. Failures are returned as *models.ParseError.
func ParseAnswer(text string) (map[string]any, error) {
	clean := strings.TrimSpace(codeFence.ReplaceAllString(text, ""))

	obj := extractJSONObject(clean)
	if obj == "" {
		return nil, &models.ParseError{Reason: "no json object found"}
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, &models.ParseError{Reason: "malformed json object", Err: err}
	}
	return raw, nil
}

// extractJSONObject returns the first brace-balanced object in input. Braces
// inside JSON strings are ignored.
func extractJSONObject(input string) string {
	start := strings.Index(input, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}
