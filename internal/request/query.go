package request

import (
	"net/url"
	"strings"
)

// queryPair is one name=value entry of a query string, in order.
type queryPair struct {
	name, value string
}

// parseQuery splits raw query text into decoded pairs the way a browser's
// URLSearchParams does: empty segments are dropped, a segment without '='
// has an empty value, '+' is a space, and invalid escapes are kept literally.
func parseQuery(raw string) []queryPair {
	var pairs []queryPair
	for _, segment := range strings.Split(raw, "&") {
		if segment == "" {
			continue
		}
		name, value, _ := strings.Cut(segment, "=")
		pairs = append(pairs, queryPair{name: formDecode(name), value: formDecode(value)})
	}
	return pairs
}

func formDecode(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return strings.ReplaceAll(s, "+", " ")
}

// encodeQuery serializes pairs as application/x-www-form-urlencoded text.
func encodeQuery(pairs []queryPair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		formEncode(&b, p.name)
		b.WriteByte('=')
		formEncode(&b, p.value)
	}
	return b.String()
}

// formEncode leaves ASCII alphanumerics and *-._ as they are, writes a space
// as '+', and percent-encodes every other byte.
func formEncode(b *strings.Builder, s string) {
	const hex = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '*', c == '-', c == '.', c == '_':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
}
