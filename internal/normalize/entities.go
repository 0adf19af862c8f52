// Package normalize holds the pure text transforms applied to every
// extracted recipe field.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// namedEntities is the fixed set of named escapes we decode. Anything else
// passes through untouched.
var namedEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
	"nbsp": " ",
}

var entityRe = regexp.MustCompile(`&(#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z]+);`)

// DecodeEntities replaces the fixed named entity set plus decimal and hex
// numeric escapes. It repeats until the text stops changing, so
// double-encoded input such as "&amp;#39;" decodes fully and the function is
// idempotent.
func DecodeEntities(s string) string {
	for strings.IndexByte(s, '&') >= 0 {
		next := entityRe.ReplaceAllStringFunc(s, decodeEntity)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func decodeEntity(m string) string {
	body := m[1 : len(m)-1]
	if body[0] != '#' {
		if v, ok := namedEntities[strings.ToLower(body)]; ok {
			return v
		}
		return m
	}

	var (
		n   uint64
		err error
	)
	if len(body) > 1 && (body[1] == 'x' || body[1] == 'X') {
		n, err = strconv.ParseUint(body[2:], 16, 32)
	} else {
		n, err = strconv.ParseUint(body[1:], 10, 32)
	}
	if err != nil || n == 0 {
		return m
	}
	r := rune(n)
	if !utf8.ValidRune(r) {
		return m
	}
	return string(r)
}
