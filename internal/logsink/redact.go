package logsink

import (
	"regexp"
	"strings"
)

// Mask replaces every credential value removed by Sanitize.
const Mask = "***"

var sensitiveKeys = []string{"password", "token", "key", "secret", "api_key", "access_token"}

var (
	keyValuePattern   = regexp.MustCompile(`(?i)(` + alternation(sensitiveKeys) + `)=(?:"(?:[^"\\]|\\.)*"|'[^']*'|[^\s&"]+)`)
	authHeaderPattern = regexp.MustCompile(`(?i)(authorization)(\s*:\s*|\s+)((?:bearer|basic|token|digest)\s+)?[^\s"]+`)
	bearerPattern     = regexp.MustCompile(`(?i)(bearer\s+)[^\s"]+`)
	jsonFieldPattern  = regexp.MustCompile(`(?i)("(?:` + alternation(sensitiveKeys) + `)"\s*:\s*)"(?:[^"\\]|\\.)*"`)
)

func alternation(keys []string) string {
	escaped := make([]string, len(keys))
	for i, key := range keys {
		escaped[i] = regexp.QuoteMeta(key)
	}
	return strings.Join(escaped, "|")
}

// Sanitize masks credential-shaped substrings: key=value pairs and JSON string
// fields whose key is a sensitive name, and Authorization or Bearer header
// values. Keys and surrounding text are preserved; only values change.
func Sanitize(message string) string {
	if message == "" {
		return message
	}
	out := keyValuePattern.ReplaceAllString(message, "${1}="+Mask)
	out = authHeaderPattern.ReplaceAllString(out, "${1}${2}${3}"+Mask)
	out = bearerPattern.ReplaceAllString(out, "${1}"+Mask)
	return jsonFieldPattern.ReplaceAllString(out, `${1}"`+Mask+`"`)
}
