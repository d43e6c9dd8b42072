package result

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/shared/casing"
)

// TypeFunc decides the entity type of a handle extracted from node.
type TypeFunc func(node map[string]any) (bid.EntityType, error)

// Rule claims the value at Path inside a node and binds it as a handle under
// Name. The first path element is the claimed field of the node.
type Rule struct {
	Name string
	Type TypeFunc
	Path []string
}

// Static always resolves to t.
func Static(t bid.EntityType) TypeFunc {
	return func(map[string]any) (bid.EntityType, error) { return t, nil }
}

// UserAt resolves the user-like object found at path (the node itself when
// path is empty).
func UserAt(path ...string) TypeFunc {
	return resolveAt(bid.ContextUser, path)
}

// EntryAt resolves the entry-like object found at path (the node itself when
// path is empty).
func EntryAt(path ...string) TypeFunc {
	return resolveAt(bid.ContextEntry, path)
}

func resolveAt(ctx bid.Context, path []string) TypeFunc {
	return func(node map[string]any) (bid.EntityType, error) {
		target, _ := dig(node, path).(map[string]any)
		return bid.Resolve(target, ctx)
	}
}

// Clean flattens one collapsed node. Each rule binds a handle; every other
// scalar field is copied under its snake_case name. Nested objects and lists
// that no rule claims are dropped. A rule whose path leads nowhere binds nil.
func Clean(node map[string]any, rules []Rule) (Record, error) {
	if node == nil {
		return nil, fmt.Errorf("%w: nil node", ErrShape)
	}
	out := make(Record, len(node))
	claimed := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if len(r.Path) > 0 {
			claimed[r.Path[0]] = struct{}{}
		}
		raw := dig(node, r.Path)
		if raw == nil {
			out[r.Name] = nil
			continue
		}
		id, err := rawID(raw)
		if err != nil {
			return nil, fmt.Errorf("result: rule %q: %w", r.Name, err)
		}
		t, err := r.Type(node)
		if err != nil {
			return nil, fmt.Errorf("result: rule %q: %w", r.Name, err)
		}
		h, err := bid.New(id, t)
		if err != nil {
			return nil, fmt.Errorf("result: rule %q: %w", r.Name, err)
		}
		out[r.Name] = h
	}
	for k, v := range node {
		if _, ok := claimed[k]; ok {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		out[casing.SnakeCase(k)] = v
	}
	return out, nil
}

// CleanList cleans every element of a collapsed list result.
func CleanList(v any, rules []Rule) ([]Record, error) {
	if v == nil {
		return []Record{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: want list, got %T", ErrShape, v)
	}
	out := make([]Record, 0, len(items))
	for i, item := range items {
		node, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %T", ErrShape, i, item)
		}
		rec, err := Clean(node, rules)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func dig(node map[string]any, path []string) any {
	var cur any = node
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok || m == nil {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func rawID(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("%w: id is %T", ErrShape, v)
	}
}
