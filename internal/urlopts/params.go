package urlopts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Param is one query parameter.
type Param struct {
	Name  string
	Value string
}

// SearchParams is an ordered multi-map of query parameters. Order is
// preserved through decoding and when appended to a URL.
type SearchParams []Param

// Params builds SearchParams from alternating name, value arguments. A
// trailing name without a value gets an empty value.
func Params(kv ...string) SearchParams {
	sp := make(SearchParams, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		p := Param{Name: kv[i]}
		if i+1 < len(kv) {
			p.Value = kv[i+1]
		}
		sp = append(sp, p)
	}
	return sp
}

// ParamsFromMap builds SearchParams from m with names in sorted order.
func ParamsFromMap(m map[string]any) SearchParams {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	sp := make(SearchParams, 0, len(names))
	for _, name := range names {
		sp = append(sp, Param{Name: name, Value: stringify(m[name])})
	}
	return sp
}

// ParseParam splits "name=value". A missing "=" yields an empty value.
func ParseParam(s string) Param {
	name, value, _ := strings.Cut(s, "=")
	return Param{Name: name, Value: value}
}

// Get returns the first value for name.
func (sp SearchParams) Get(name string) (string, bool) {
	for _, p := range sp {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// MarshalJSON writes SearchParams as a list of [name, value] pairs so
// duplicates and order survive a round trip.
func (sp SearchParams) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, len(sp))
	for i, p := range sp {
		pairs[i] = [2]string{p.Name, p.Value}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON accepts either an object ({"a": 1}) or a list of pairs
// ([["a", "1"]]). Object keys keep their document order.
func (sp *SearchParams) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode searchParams: %w", err)
	}

	out := SearchParams{}
	switch tok {
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("decode searchParams: %w", err)
			}
			var raw any
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("decode searchParams %q: %w", keyTok, err)
			}
			value, err := scalar(raw)
			if err != nil {
				return fmt.Errorf("decode searchParams %q: %w", keyTok, err)
			}
			out = append(out, Param{Name: keyTok.(string), Value: value})
		}
	case json.Delim('['):
		for dec.More() {
			var pair []any
			if err := dec.Decode(&pair); err != nil {
				return fmt.Errorf("decode searchParams pair: %w", err)
			}
			p, err := pairParam(pair)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
	case nil:
		*sp = nil
		return nil
	default:
		return fmt.Errorf("decode searchParams: expected object or array, got %v", tok)
	}

	*sp = out
	return nil
}

// UnmarshalYAML accepts the same shapes as UnmarshalJSON.
func (sp *SearchParams) UnmarshalYAML(node *yaml.Node) error {
	out := SearchParams{}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			var raw any
			if err := node.Content[i+1].Decode(&raw); err != nil {
				return fmt.Errorf("decode searchParams %q: %w", node.Content[i].Value, err)
			}
			value, err := scalar(raw)
			if err != nil {
				return fmt.Errorf("decode searchParams %q: %w", node.Content[i].Value, err)
			}
			out = append(out, Param{Name: node.Content[i].Value, Value: value})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			var pair []any
			if err := item.Decode(&pair); err != nil {
				return fmt.Errorf("decode searchParams pair: %w", err)
			}
			p, err := pairParam(pair)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
	default:
		return fmt.Errorf("decode searchParams: expected mapping or sequence at line %d", node.Line)
	}

	*sp = out
	return nil
}

func pairParam(pair []any) (Param, error) {
	if len(pair) != 2 {
		return Param{}, fmt.Errorf("decode searchParams pair: want [name, value], got %d elements", len(pair))
	}
	name, err := scalar(pair[0])
	if err != nil {
		return Param{}, fmt.Errorf("decode searchParams name: %w", err)
	}
	value, err := scalar(pair[1])
	if err != nil {
		return Param{}, fmt.Errorf("decode searchParams %q: %w", name, err)
	}
	return Param{Name: name, Value: value}, nil
}

func scalar(v any) (string, error) {
	switch v.(type) {
	case map[string]any, []any:
		return "", fmt.Errorf("value must be a scalar, got %T", v)
	}
	return stringify(v), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
