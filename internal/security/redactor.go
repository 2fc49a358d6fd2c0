// Package security holds the cross-cutting protections of the chat API:
// secret redaction in logs and config dumps, per-client rate limiting,
// request body validation and the admin audit trail.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every redacted secret.
const RedactPlaceholder = "***REDACTED***"

var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|pass(word)?|api_?key|credential|authorization)`)

// Redactor masks secrets in strings and config maps. Secrets are found by
// pattern (known key formats) or by literal value (keys loaded at startup).
// Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// IsSecretKey reports whether a config key name looks like it holds a
// secret.
func IsSecretKey(key string) bool {
	return secretKeyPattern.MatchString(key)
}

// NewRedactor returns a Redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern registers an extra secret pattern.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral registers a secret value. Values shorter than four bytes are
// ignored so that short tokens do not mask ordinary words.
func (r *Redactor) AddLiteral(secret string) {
	if len(secret) < 4 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.literals {
		if l == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// Redact masks every known secret in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllStringFunc(s, func(m string) string {
			// Capture groups around the secret are kept.
			sub := p.FindStringSubmatch(m)
			var prefix, suffix string
			if len(sub) > 1 {
				prefix = sub[1]
			}
			if len(sub) > 2 {
				suffix = sub[2]
			}
			return prefix + RedactPlaceholder + suffix
		})
	}
	return s
}

// RedactMap masks, in place, string values stored under secret-looking
// keys and any string value containing a known secret. Nested maps and
// slices are walked.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			if val != "" && IsSecretKey(k) {
				m[k] = RedactPlaceholder
				continue
			}
			m[k] = r.Redact(val)
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for i, item := range val {
				switch it := item.(type) {
				case map[string]any:
					r.RedactMap(it)
				case string:
					val[i] = r.Redact(it)
				}
			}
		}
	}
}

// DefaultPatterns returns patterns for the key formats the chat backends
// use. Up to two capture groups, the text before and after the secret,
// are kept in the output.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic, OpenRouter and OpenAI keys.
		regexp.MustCompile(`sk-(?:ant-|or-)?[a-zA-Z0-9\-_]{20,}`),
		// Authorization header values.
		regexp.MustCompile(`(?i)((?:bearer|basic) )[a-zA-Z0-9\-._~+/]{8,}=*`),
		// Credentials embedded in URLs.
		regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+(@)`),
	}
}
