// Package redact scrubs credentials out of inbound payloads before they are
// persisted for audit. Trigger bodies arrive from third-party CRMs and may
// carry API keys, signatures, or bearer tokens that must never reach the
// database.
package redact

import (
	"log/slog"
	"regexp"
)

const placeholder = "[REDACTED]"

// CompiledPattern holds a pre-compiled regex with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns are applied to every payload, in order. The JSON field
// pattern replaces only the value so the document stays parseable.
var builtinPatterns = []struct {
	name        string
	pattern     string
	replacement string
}{
	{
		name:        "partner_key",
		pattern:     `pdy_sk_[0-9a-fA-F]{64}`,
		replacement: "pdy_sk_" + placeholder,
	},
	{
		name:        "bearer_token",
		pattern:     `(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`,
		replacement: "${1}" + placeholder,
	},
	{
		name:        "secret_json_field",
		pattern:     `(?i)("(?:api[_-]?key|access[_-]?token|refresh[_-]?token|token|secret|password|authorization|signature|private[_-]?key)"\s*:\s*")[^"]*(")`,
		replacement: "${1}" + placeholder + "${2}",
	},
	{
		name:        "secret_query_param",
		pattern:     `(?i)((?:api[_-]?key|access[_-]?token|token|secret)=)[^&\s"']+`,
		replacement: "${1}" + placeholder,
	},
}

// Redactor applies the builtin credential patterns to text payloads.
type Redactor struct {
	patterns []*CompiledPattern
}

// NewRedactor compiles the builtin patterns. Invalid patterns are logged and
// skipped rather than failing startup.
func NewRedactor() *Redactor {
	r := &Redactor{}
	for _, p := range builtinPatterns {
		compiled, err := regexp.Compile(p.pattern)
		if err != nil {
			slog.Error("Failed to compile redaction pattern, skipping",
				"pattern", p.name, "error", err)
			continue
		}
		r.patterns = append(r.patterns, &CompiledPattern{
			Name:        p.name,
			Regex:       compiled,
			Replacement: p.replacement,
		})
	}
	return r
}

// Redact returns text with every credential match replaced.
func (r *Redactor) Redact(text string) string {
	for _, p := range r.patterns {
		text = p.Regex.ReplaceAllString(text, p.Replacement)
	}
	return text
}

// RedactBytes is Redact for raw request bodies.
func (r *Redactor) RedactBytes(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	return []byte(r.Redact(string(data)))
}
