// Package bid encodes and decodes bot identifiers (BIDs): remote entity ids
// tagged with the kind of entity they refer to.
//
// A BID serializes as "bid:<type>:<raw id>". The sentinel prefix is what lets
// call sites accept either a BID or a plain literal in the same argument
// position, so plain strings must never be mistaken for BIDs.
package bid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel is the fixed first segment of every serialized BID.
const Sentinel = "bid"

const separator = ":"

var (
	// ErrInvalidType is returned when a BID is built with an unknown entity type
	// or an empty raw id.
	ErrInvalidType = errors.New("bid: invalid entity type")
	// ErrMalformed is returned when a value that is not a BID is parsed as one.
	ErrMalformed = errors.New("bid: malformed handle")
)

// EntityType is the closed set of remote entity kinds a BID may carry.
type EntityType string

const (
	User        EntityType = "user"
	Person      EntityType = "person"
	Nonprofit   EntityType = "nonprofit"
	Bot         EntityType = "bot"
	Donation    EntityType = "donation"
	Transaction EntityType = "transaction"
	News        EntityType = "news"
	Event       EntityType = "event"
	Post        EntityType = "post"
	Comment     EntityType = "comment"
)

var validTypes = map[EntityType]struct{}{
	User: {}, Person: {}, Nonprofit: {}, Bot: {},
	Donation: {}, Transaction: {}, News: {}, Event: {}, Post: {}, Comment: {},
}

// Valid reports whether t belongs to the closed set of entity types.
func (t EntityType) Valid() bool {
	_, ok := validTypes[t]
	return ok
}

// IsEntry reports whether t is a commentable/likeable entry type.
func (t EntityType) IsEntry() bool {
	for _, e := range entryOrder {
		if e == t {
			return true
		}
	}
	return false
}

// BID is an immutable, comparable handle to a remote entity.
type BID struct {
	ID   string
	Type EntityType
}

// New builds a BID from a raw remote id and an entity type.
func New(rawID string, t EntityType) (BID, error) {
	if rawID == "" {
		return BID{}, fmt.Errorf("%w: empty raw id", ErrInvalidType)
	}
	if !t.Valid() {
		return BID{}, fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}
	return BID{ID: rawID, Type: t}, nil
}

// MustNew is New for statically known inputs; it panics on error.
func MustNew(rawID string, t EntityType) BID {
	b, err := New(rawID, t)
	if err != nil {
		panic(err)
	}
	return b
}

// IsZero reports whether b is the zero BID.
func (b BID) IsZero() bool {
	return b.ID == "" && b.Type == ""
}

// String returns the serialized form, which is also the source of truth when
// a BID is persisted.
func (b BID) String() string {
	if b.IsZero() {
		return ""
	}
	return Sentinel + separator + string(b.Type) + separator + b.ID
}

// MarshalJSON encodes the BID as its serialized string.
func (b BID) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON decodes a serialized BID string.
func (b *BID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s == "" {
		*b = BID{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Is reports whether v has the exact shape of a BID: a BID value, or a string
// with three colon-delimited parts whose first part is the sentinel and whose
// second part is a known entity type. The raw id is the remainder and may
// itself contain colons.
func Is(v any) bool {
	switch x := v.(type) {
	case BID:
		return !x.IsZero()
	case *BID:
		return x != nil && !x.IsZero()
	case string:
		_, ok := split(x)
		return ok
	default:
		return false
	}
}

// Parse decodes a serialized BID.
func Parse(s string) (BID, error) {
	parts, ok := split(s)
	if !ok {
		return BID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return BID{ID: parts[2], Type: EntityType(parts[1])}, nil
}

// From accepts a BID, a *BID or a serialized BID string.
func From(v any) (BID, error) {
	switch x := v.(type) {
	case BID:
		if x.IsZero() {
			return BID{}, fmt.Errorf("%w: zero value", ErrMalformed)
		}
		return x, nil
	case *BID:
		if x == nil {
			return BID{}, fmt.Errorf("%w: nil", ErrMalformed)
		}
		return From(*x)
	case string:
		return Parse(x)
	default:
		return BID{}, fmt.Errorf("%w: %T", ErrMalformed, v)
	}
}

func split(s string) ([]string, bool) {
	parts := strings.SplitN(s, separator, 3)
	if len(parts) != 3 || parts[0] != Sentinel || parts[2] == "" {
		return nil, false
	}
	if !EntityType(parts[1]).Valid() {
		return nil, false
	}
	return parts, true
}
