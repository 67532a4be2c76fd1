// Package payload builds the JSON bodies sent by the load helper. Every body
// has the {"data": {...}} shape the receiver accepts.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var ErrNoData = errors.New("template has no data mapping")

const (
	placeholderIndex = "{{index}}"
	placeholderUUID  = "{{uuid}}"
)

type envelope struct {
	Data map[string]any `json:"data"`
}

// Source produces request bodies.
type Source struct {
	data map[string]any
	now  func() time.Time
}

// Default returns a Source whose bodies carry the request index, a fresh
// request id and the send time.
func Default() *Source {
	return &Source{now: time.Now}
}

// FromFile loads a YAML or JSON template. The file must hold a top-level
// "data" mapping, which is copied into every body.
func FromFile(path string) (*Source, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	src, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return src, nil
}

// Parse reads a template document. JSON is valid YAML, so both are accepted.
func Parse(b []byte) (*Source, error) {
	var doc struct {
		Data map[string]any `yaml:"data"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if doc.Data == nil {
		return nil, ErrNoData
	}
	data, ok := normalize(doc.Data).(map[string]any)
	if !ok {
		return nil, ErrNoData
	}
	return &Source{data: data, now: time.Now}, nil
}

// Body returns the body for request i.
func (s *Source) Body(i int) ([]byte, error) {
	if s.data == nil {
		return json.Marshal(envelope{Data: map[string]any{
			"request":    i,
			"request_id": uuid.NewString(),
			"sent_at":    s.now().UTC().Format(time.RFC3339Nano),
		}})
	}
	data, _ := expand(s.data, i).(map[string]any)
	return json.Marshal(envelope{Data: data})
}

// expand returns a deep copy of v with placeholders substituted.
func expand(v any, i int) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = expand(val, i)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for j, val := range t {
			out[j] = expand(val, i)
		}
		return out
	case string:
		if t == placeholderIndex {
			return i
		}
		t = strings.ReplaceAll(t, placeholderIndex, strconv.Itoa(i))
		for strings.Contains(t, placeholderUUID) {
			t = strings.Replace(t, placeholderUUID, uuid.NewString(), 1)
		}
		return t
	default:
		return t
	}
}

// normalize turns yaml's map[any]any nodes into map[string]any so the
// result can be marshalled as JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for j, val := range t {
			out[j] = normalize(val)
		}
		return out
	default:
		return t
	}
}
