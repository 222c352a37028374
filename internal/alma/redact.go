package alma

import (
	"regexp"
	"strings"
)

var (
	// Matches the "apikey <key>" Authorization scheme Alma uses.
	apikeyAuthRe = regexp.MustCompile(`(?i)\bapikey\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|alma[_-]?api[_-]?key)\b\s*[:=]\s*[^\s"']+`)
)

// redactSecrets removes obvious secret-bearing substrings from error/log
// strings before they reach logs or mail.
func redactSecrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = apikeyAuthRe.ReplaceAllString(out, "apikey <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	return strings.TrimSpace(out)
}
