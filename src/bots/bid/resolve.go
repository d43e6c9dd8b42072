package bid

import (
	"errors"
	"fmt"
)

// ErrUnresolvable is returned when a node carries none of the fields the
// resolution rule for its context inspects.
var ErrUnresolvable = errors.New("bid: unresolvable entity type")

// Context tells Resolve what kind of node it is looking at. The same
// structural question means different things for user-like and entry-like
// nodes.
type Context int

const (
	// ContextUser resolves user-like nodes to person, bot or nonprofit.
	ContextUser Context = iota
	// ContextEntry resolves entry-like nodes to one of the entry types.
	ContextEntry
)

func (c Context) String() string {
	switch c {
	case ContextUser:
		return "user"
	case ContextEntry:
		return "entry"
	default:
		return fmt.Sprintf("context(%d)", int(c))
	}
}

// entryOrder is checked first to last; a node that carries more than one of
// these fields resolves to the earliest.
var entryOrder = []EntityType{Donation, Transaction, News, Event, Post, Comment}

// EntryOrder returns the ordered discriminant list used for entry nodes.
func EntryOrder() []EntityType {
	out := make([]EntityType, len(entryOrder))
	copy(out, entryOrder)
	return out
}

// Resolve applies the entity-type resolution rule to a raw node. Field names
// are accepted in either the wire's mixed case or snake case.
func Resolve(node map[string]any, ctx Context) (EntityType, error) {
	if node == nil {
		return "", fmt.Errorf("%w: nil node", ErrUnresolvable)
	}
	switch ctx {
	case ContextUser:
		person, ok := node["person"].(map[string]any)
		if !ok || person == nil {
			return Nonprofit, nil
		}
		if truthy(lookup(person, "isBot", "is_bot")) {
			return Bot, nil
		}
		return Person, nil
	case ContextEntry:
		for _, t := range entryOrder {
			if present(node[string(t)]) {
				return t, nil
			}
		}
		return "", fmt.Errorf("%w: entry node has none of %v", ErrUnresolvable, entryOrder)
	default:
		return "", fmt.Errorf("%w: unknown context %s", ErrUnresolvable, ctx)
	}
}

func lookup(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if m, ok := v.(map[string]any); ok {
		return m != nil
	}
	return true
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true"
	default:
		return false
	}
}
