package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// DecodeJSON parses a model response into T. The response must be a JSON
// object containing every key in required. Markdown code fences around the
// object are tolerated. Failures wrap ErrReasoningParse.
func DecodeJSON[T any](raw string, required ...string) (T, error) {
	var out T
	body := stripFences(raw)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &keys); err != nil {
		return out, fmt.Errorf("%w: not a JSON object: %w", ErrReasoningParse, err)
	}
	for _, k := range required {
		v, ok := keys[k]
		if !ok || string(v) == "null" {
			return out, fmt.Errorf("%w: missing required key %q", ErrReasoningParse, k)
		}
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrReasoningParse, err)
	}
	return out, nil
}

// CompleteJSON runs req in JSON mode and decodes the answer into T.
func CompleteJSON[T any](ctx context.Context, c Completer, req Request, required ...string) (T, error) {
	req.JSON = true
	raw, err := c.Complete(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeJSON[T](raw, required...)
}

// stripFences removes a surrounding markdown code fence and its language
// tag, whether or not the fence spans several lines.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	// The tag is the leading run of letters and digits, e.g. "json".
	if i := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}); i > 0 {
		s = s[i:]
	}
	return strings.TrimSpace(s)
}
