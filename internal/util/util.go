package util

import (
	"encoding/json"
	"os"
	"regexp"
)

// winVarPattern matches Windows-style %VAR% references.
var winVarPattern = regexp.MustCompile(`%([A-Za-z0-9_]+)%`)

// ExpandEnvUniversal expands both Unix-style ($VAR, ${VAR}) and Windows-style (%VAR%) environment variables.
// Unset variables expand to the empty string in both styles.
func ExpandEnvUniversal(s string) string {
	return winVarPattern.ReplaceAllStringFunc(os.ExpandEnv(s), func(match string) string {
		if value, ok := os.LookupEnv(match[1 : len(match)-1]); ok {
			return value
		}
		return ""
	})
}

// Snippet returns a short prefix of a byte slice, useful for logging.
// Truncation happens on rune boundaries.
func Snippet(b []byte) string {
	const maxLen = 200
	s := string(b)
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}

// JSONSnippet renders v as JSON and truncates it like Snippet.
// Values that cannot be encoded render as "<unencodable>".
func JSONSnippet(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "<unencodable>"
	}
	return Snippet(b)
}
