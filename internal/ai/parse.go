package ai

import (
	"encoding/json"
	"strings"

	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
)

// ParseResult is the tagged outcome of locating a draft inside the model's
// free-form response: either a parsed draft or the unparseable raw text.
// The fallback path is an explicit branch on Parsed(), not an error.
type ParseResult struct {
	draft *prescription.Draft
	raw   string
}

// Parsed reports whether a structured draft was extracted.
func (r ParseResult) Parsed() bool { return r.draft != nil }

// Draft returns the extracted draft; only valid when Parsed() is true.
func (r ParseResult) Draft() prescription.Draft { return *r.draft }

// Raw returns the model's raw response text.
func (r ParseResult) Raw() string { return r.raw }

// ParseDraft locates the first {...} span in the response and decodes it.
// Models wrap JSON in markdown fences and prose; everything outside the
// outermost braces is discarded.
func ParseDraft(text string) ParseResult {
	span, ok := extractJSON(text)
	if !ok || !json.Valid([]byte(span)) {
		return ParseResult{raw: text}
	}

	var draft prescription.Draft
	if err := json.Unmarshal([]byte(span), &draft); err != nil {
		return ParseResult{raw: text}
	}
	return ParseResult{draft: &draft, raw: text}
}

// extractJSON returns the span between the first '{' and the last '}'.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
