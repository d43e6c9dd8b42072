package casing

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SnakeCase converts a wire field name (mixedCase) to snake_case. An
// underscore is inserted before every upper-case rune except the first.
func SnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MixedCase converts a snake_case variable name to the wire's mixedCase.
// Every segment after the first is title-cased, so "order_by" becomes
// "orderBy" and "by_id" becomes "byId".
func MixedCase(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	for i, p := range parts {
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(title(p))
	}
	return b.String()
}

func title(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
