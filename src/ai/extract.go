package ai

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONFound is returned when none of the extraction tiers finds a
// parseable JSON value in the model output.
var ErrNoJSONFound = errors.New("no JSON found in model output")

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls a JSON value out of loosely formatted model output.
// Models wrap JSON in markdown fences or surround it with prose even when
// instructed not to, so three tiers are tried in order: direct parse of the
// trimmed text, the contents of the first fenced code block, and the first
// balanced {...} substring.
func ExtractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return trimmed, nil
	}

	if m := fencedBlockRe.FindStringSubmatch(trimmed); m != nil {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	if candidate := firstBalancedObject(trimmed); candidate != "" {
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	return "", ErrNoJSONFound
}

// UnmarshalLoose extracts JSON from the text and decodes it into v.
func UnmarshalLoose(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}

// StripFences removes a surrounding markdown code fence, if any, without
// attempting JSON validation.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencedBlockRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// firstBalancedObject scans for the first '{' and returns the substring up to
// its matching '}', tracking string literals so braces inside them don't
// affect the depth count.
func firstBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
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
				return s[start : i+1]
			}
		}
	}
	return ""
}
