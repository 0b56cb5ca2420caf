package logging

import "regexp"

// Redactor scrubs credentials from log text.
type Redactor struct {
	patterns []*regexp.Regexp
}

// defaultPatterns catch the key shapes a user might paste into this tool.
var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-or-v\d+-[a-zA-Z0-9]{16,}`),          // OpenRouter
	regexp.MustCompile(`sk-(?:proj-|ant-)?[a-zA-Z0-9_-]{20,}`), // OpenAI/Anthropic
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]{8,}`),  // Authorization headers
	regexp.MustCompile(`(?i)("?api_?key"?\s*[:=]\s*"?)[^"\s,}]+`),
}

const redactedPlaceholder = "[REDACTED]"

// NewRedactor creates a redactor with the default patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: append([]*regexp.Regexp(nil), defaultPatterns...)}
}

// AddPattern adds a custom regex pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact replaces every sensitive match in text.
func (r *Redactor) Redact(text string) string {
	result := text
	for _, p := range r.patterns {
		if p.NumSubexp() > 0 {
			result = p.ReplaceAllString(result, "${1}"+redactedPlaceholder)
			continue
		}
		result = p.ReplaceAllString(result, redactedPlaceholder)
	}
	return result
}

// ContainsSensitive reports whether text matches any pattern.
func (r *Redactor) ContainsSensitive(text string) bool {
	for _, p := range r.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
