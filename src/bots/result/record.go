package result

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stake-plus/ibots/src/bots/bid"
)

// Record is one cleaned node: handles under their rule names, scalars under
// their snake_case field names.
type Record map[string]any

// BID returns the handle bound under key.
func (r Record) BID(key string) (bid.BID, bool) {
	h, ok := r[key].(bid.BID)
	return h, ok
}

// String returns the value under key rendered as a string; handles render in
// their serialized form and missing keys render empty.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer under key. Monetary amounts arrive as integer cents.
func (r Record) Int(key string) (int64, bool) {
	switch v := r[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Bool returns the boolean under key.
func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}
