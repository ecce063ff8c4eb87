// Package redact scrubs sensitive substrings from free text before it leaves
// the trust boundary toward the analyst backend.
package redact

import (
	"regexp"
	"strings"
)

const (
	// EmailToken replaces every email-shaped substring.
	EmailToken = "[EMAIL_REDACTED]"

	// NetMarker replaces the first three octets of an IPv4-shaped substring.
	NetMarker = "INTERNAL_NET"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)

	// dottedRe finds maximal runs of dot-separated digit groups, the candidates
	// for IPv4 masking. Group count and boundaries are checked in maskIPv4.
	dottedRe = regexp.MustCompile(`\d+(?:\.\d+)+`)
)

// Redact applies email redaction then IPv4 masking. It is idempotent:
// Redact(Redact(s)) == Redact(s). Empty input yields "".
func Redact(text string) string {
	if text == "" {
		return ""
	}
	out := emailRe.ReplaceAllString(text, EmailToken)
	return maskIPv4(out)
}

// maskIPv4 rewrites a.b.c.d as INTERNAL_NET.d, keeping the last octet for
// correlation. Runs glued to a word character or a dot on the left are left
// alone, which keeps already-masked text stable.
func maskIPv4(s string) string {
	locs := dottedRe.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if start > 0 && (isWordByte(s[start-1]) || s[start-1] == '.') {
			continue
		}
		if end < len(s) && isWordByte(s[end]) {
			continue
		}
		octets := strings.Split(s[start:end], ".")
		if !looksLikeIPv4(octets) {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(NetMarker)
		b.WriteByte('.')
		b.WriteString(octets[3])
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func looksLikeIPv4(octets []string) bool {
	if len(octets) != 4 {
		return false
	}
	for _, o := range octets {
		if len(o) == 0 || len(o) > 3 {
			return false
		}
	}
	return true
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}

// ContainsPII reports whether text carries a redaction token, i.e. whether
// Redact found something to scrub.
func ContainsPII(text string) bool {
	return strings.Contains(text, EmailToken) || strings.Contains(text, NetMarker+".")
}
