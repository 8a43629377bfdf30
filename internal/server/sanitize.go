package server

import (
	"regexp"
	"strings"
)

// maxSanitizedLen caps user input after cleanup so a single message can
// never blow up the prompt.
const maxSanitizedLen = 1000

// dangerousPatterns are stripped from user input before it reaches the
// model. First line of defense against prompt injection; length and
// emptiness checks happen separately in the handler.
var dangerousPatterns = []*regexp.Regexp{
	// Prompt injection attempts
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions?`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?previous\s+instructions?`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?`),
	regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)\s+`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?previous`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)system\s*:`),
	regexp.MustCompile(`(?i)\[INST\]`),
	regexp.MustCompile(`(?i)<<SYS>>`),
	// HTML/script injection
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`<[^>]+>`),
	// SQL fragments, as a precaution
	regexp.MustCompile(`(?i);\s*(DROP|DELETE|INSERT|UPDATE|SELECT)\s+`),
}

// sanitizeInput strips dangerous patterns, collapses whitespace and caps
// the length of a user message. The result may be empty.
func sanitizeInput(input string) string {
	sanitized := input
	for _, pattern := range dangerousPatterns {
		sanitized = pattern.ReplaceAllString(sanitized, "[REMOVED]")
	}

	sanitized = strings.Join(strings.Fields(sanitized), " ")

	if runes := []rune(sanitized); len(runes) > maxSanitizedLen {
		sanitized = string(runes[:maxSanitizedLen])
	}

	return sanitized
}

// containsDangerousPattern reports whether input matches any stripped
// pattern, without modifying it. Used for logging suspicious requests.
func containsDangerousPattern(input string) bool {
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
