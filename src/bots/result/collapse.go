// Package result turns raw GraphQL results into the flat records bot logic
// consumes: connection wrappers are collapsed, field names are snake-cased and
// raw ids are wrapped into typed handles.
package result

import (
	"errors"
	"fmt"
	"sort"

	"github.com/stake-plus/ibots/src/shared/casing"
)

// ErrShape is returned when a result does not have the shape an operation
// promised.
var ErrShape = errors.New("result: unexpected shape")

// Collapse replaces every connection wrapper with its contents: an object
// holding "edges" becomes the collapsed edge list, an object holding "node"
// becomes the collapsed node, and any other object is re-keyed to snake_case.
// Input without wrappers only has its keys renamed, and collapsing an already
// collapsed value returns an equal value.
func Collapse(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Collapse(item)
		}
		return out
	case map[string]any:
		if edges, ok := x["edges"]; ok {
			return Collapse(edges)
		}
		if node, ok := x["node"]; ok {
			return Collapse(node)
		}
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[casing.SnakeCase(k)] = Collapse(item)
		}
		return out
	default:
		return v
	}
}

// Unwrap returns the value of the single top-level field of a GraphQL data
// object, which is how every operation in the catalog is shaped.
func Unwrap(data map[string]any) (any, error) {
	if len(data) != 1 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: want one top-level field, got %v", ErrShape, keys)
	}
	for _, v := range data {
		return v, nil
	}
	return nil, nil
}

// FirstItem returns the value under the lexically first key of m, or nil when
// m is empty.
func FirstItem(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return m[keys[0]]
}

// FirstScalar returns the first scalar reachable from v, descending through
// objects by sorted key. An object carrying a scalar "id" yields that id.
// Mutations use it to pull the new id out of payloads like
// {"createPost": {"post": {"id": "12"}}}.
func FirstScalar(v any) (any, bool) {
	switch x := v.(type) {
	case map[string]any:
		if len(x) == 0 {
			return nil, false
		}
		if id, ok := x["id"]; ok && isScalar(id) {
			return id, true
		}
		return FirstScalar(FirstItem(x))
	case []any:
		return nil, false
	case nil:
		return nil, false
	default:
		return x, true
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any, nil:
		return false
	}
	return true
}
