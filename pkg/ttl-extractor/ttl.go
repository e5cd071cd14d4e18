package ttlextractor

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultTTL is used whenever the verdict does not end in a bare number.
const DefaultTTL = 3600

var (
	// reasoning models wrap their chain of thought in <think> tags
	reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	digitsOnly     = regexp.MustCompile(`^[0-9]+$`)
)

// Extract returns the TTL in seconds recommended by the classifier verdict.
// It never fails: unparseable verdicts yield DefaultTTL.
func Extract(verdict string) int {
	ttl, _ := ExtractWithSource(verdict)
	return ttl
}

// ExtractWithSource is like Extract but also reports whether the TTL came
// from the verdict (true) or from the fallback (false).
func ExtractWithSource(verdict string) (int, bool) {
	clean := strings.TrimSpace(reasoningBlock.ReplaceAllString(verdict, ""))
	words := strings.Fields(clean)
	if len(words) == 0 {
		return DefaultTTL, false
	}
	last := words[len(words)-1]
	if !digitsOnly.MatchString(last) {
		return DefaultTTL, false
	}
	ttl, err := strconv.Atoi(last)
	// zero is not a usable expiry; out-of-range numbers cannot be represented
	if err != nil || ttl <= 0 {
		return DefaultTTL, false
	}
	return ttl, true
}
