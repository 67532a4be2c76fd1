package hammer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// Expectation checks a single JSONPath value in a response body.
type Expectation struct {
	Path string
	Want string
}

// ParseExpectation parses "<jsonpath>=<value>", e.g. "$.status=success".
func ParseExpectation(s string) (*Expectation, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	path, want, ok := strings.Cut(s, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: expect %q: want <jsonpath>=<value>", ErrInvalidOptions, s)
	}
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("%w: expect %q: jsonpath must start with $", ErrInvalidOptions, s)
	}
	return &Expectation{Path: path, Want: strings.TrimSpace(want)}, nil
}

// Match reports whether body holds Want at Path.
func (e *Expectation) Match(body []byte) (bool, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, fmt.Errorf("response body is not valid JSON: %w", err)
	}
	val, err := jsonpath.Get(e.Path, doc)
	if err != nil {
		return false, fmt.Errorf("jsonpath %s: %w", e.Path, err)
	}
	return stringify(val) == e.Want, nil
}

func stringify(v any) string {
	if arr, ok := v.([]any); ok && len(arr) == 1 {
		return stringify(arr[0])
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
