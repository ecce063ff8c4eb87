package triage

import (
	"strings"
	"unicode"
)

// Classifier turns an analyst report into a Verdict. Swap implementations to
// move from free-text markers to a structured response.
type Classifier interface {
	Classify(report string) Verdict
}

const (
	defaultHeaderLines = 2
	defaultHeaderChars = 200
)

// MarkerClassifier looks for fixed verdict markers in the report header, the
// first Lines lines capped at Chars characters. Matching ignores case and
// punctuation; MALICIOUS beats AUTHORIZED, and no marker means SUSPICIOUS.
type MarkerClassifier struct {
	Lines int
	Chars int
}

// Classify implements Classifier.
func (c MarkerClassifier) Classify(report string) Verdict {
	words := " " + normalizeHeader(c.header(report)) + " "
	switch {
	case strings.Contains(words, " "+string(VerdictMalicious)+" "):
		return VerdictMalicious
	case strings.Contains(words, " "+string(VerdictAuthorized)+" "):
		return VerdictAuthorized
	default:
		return VerdictSuspicious
	}
}

func (c MarkerClassifier) header(report string) string {
	lines, chars := c.Lines, c.Chars
	if lines <= 0 {
		lines = defaultHeaderLines
	}
	if chars <= 0 {
		chars = defaultHeaderChars
	}

	report = strings.TrimLeft(report, " \t\r\n")
	parts := strings.SplitN(report, "\n", lines+1)
	if len(parts) > lines {
		parts = parts[:lines]
	}
	head := []rune(strings.Join(parts, "\n"))
	if len(head) > chars {
		head = head[:chars]
	}
	return string(head)
}

// normalizeHeader upper-cases s and turns every non-letter into a space so
// "**Malicious**", "| MALICIOUS" and "verdict:malicious." all match, while
// UNAUTHORIZED stays its own word.
func normalizeHeader(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToUpper(r)
		}
		return ' '
	}, s)
}
