package prompt

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a reply holds no JSON object matching the schema.
var ErrNoJSON = errors.New("no matching JSON object in reply")

// ExtractJSON returns the first balanced {...} object in text that decodes
// and validates against schema. Objects nested inside a rejected candidate
// are tried in turn. When nothing matches, the error wraps ErrNoJSON and, if
// a candidate decoded, the last validation failure.
func ExtractJSON(text string, schema map[string]any) (map[string]any, error) {
	var lastErr error
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > 0 {
			var fields map[string]any
			if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err == nil {
				err = Validate(fields, schema)
				if err == nil {
					return fields, nil
				}
				lastErr = err
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	if lastErr != nil {
		return nil, errors.Join(ErrNoJSON, lastErr)
	}
	return nil, ErrNoJSON
}

// ParseReply extracts a Reply from a model's free-form answer.
func ParseReply(text string) (Reply, error) {
	fields, err := ExtractJSON(text, DecisionSchema())
	if err != nil {
		return Reply{}, err
	}
	r := Reply{
		Choice:        strings.TrimSpace(fields["choice"].(string)),
		Justification: strings.TrimSpace(fields["justification"].(string)),
	}
	if r.Choice == "" {
		return Reply{}, &ValidationError{Field: "choice", Value: fields["choice"], Message: "empty choice"}
	}
	return r, nil
}

// matchBrace returns the index of the brace closing the one at start, or -1.
// Braces inside JSON strings are ignored.
func matchBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return i
			}
		}
	}
	return -1
}
