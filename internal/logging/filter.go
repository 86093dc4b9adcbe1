// Package logging scrubs secrets out of log output. Its zerolog hook and
// writer keep secrets found in step inputs, target URLs and action output out
// of the log file and out of stored execution reports.
//
// Import rules:
//   - CAN import: std lib
//   - MUST NOT import: any internal package
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue replaces every secret this package finds.
const RedactedValue = "[REDACTED]"

// rule is one secret shape and what to put in its place.
type rule struct {
	re   *regexp.Regexp
	repl string
}

//nolint:gochecknoglobals // compiled once, shared by the hook and the writer
var rules = []rule{
	// scheme://user:pass@ keeps the scheme so the target stays readable
	{regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^\s:/@]+:[^\s/@]+@`), "${1}" + RedactedValue + "@"},
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_-]{16,})["']?`), RedactedValue},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]{20,}`), RedactedValue},
	{regexp.MustCompile(`(?i)basic\s+[a-zA-Z0-9+/]{16,}={0,2}`), RedactedValue},
	{regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?[a-zA-Z0-9_-]{20,}["']?`), RedactedValue},
	{regexp.MustCompile(`(?i)(secret|password|credential|passwd|pwd)\s*[:=]\s*["']?[^\s"']{8,}["']?`), RedactedValue},
	{regexp.MustCompile(`(?i)-----BEGIN[A-Z\s]+PRIVATE KEY-----`), RedactedValue},
	{regexp.MustCompile(`(?i)(token|auth)\s*[:=]\s*["']?[a-zA-Z0-9+/=._-]{32,}["']?`), RedactedValue},
}

// secretKeys are matched as case-insensitive substrings of input, output and
// property names.
//
//nolint:gochecknoglobals // fixed vocabulary
var secretKeys = []string{
	"api_key", "apikey", "api-key",
	"private_key", "privatekey", "private-key",
	"token", "password", "passwd", "secret", "credential",
	"bearer", "authorization",
}

// SensitiveDataHook marks events whose message looks like it carries a
// secret with contains_filtered_data=true. The message itself is scrubbed by
// FilteringWriter on the way to the log file.
type SensitiveDataHook struct{}

// NewSensitiveDataHook returns the hook installed on the CLI logger.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if !ContainsSensitiveData(msg) {
		return
	}
	e.Bool("contains_filtered_data", true)
}

// ContainsSensitiveData reports whether s matches any secret shape.
func ContainsSensitiveData(s string) bool {
	for _, r := range rules {
		if r.re.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue scrubs every secret shape found in value.
func FilterSensitiveValue(value string) string {
	for _, r := range rules {
		value = r.re.ReplaceAllString(value, r.repl)
	}
	return value
}

// IsSensitiveFieldName reports whether a key such as "db_password" or
// "X-Api-Key" names a secret.
func IsSensitiveFieldName(fieldName string) bool {
	name := strings.ToLower(fieldName)
	for _, k := range secretKeys {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// SafeValue hides the whole value when the key names a secret and scrubs
// secret shapes out of it otherwise.
//
//	logger.Debug().Str("url", logging.SafeValue("url", target.URL)).Msg("target resolved")
func SafeValue(fieldName, value string) string {
	if IsSensitiveFieldName(fieldName) {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// RedactMap returns a copy of m where values under sensitive keys are
// replaced and strings are filtered, recursing into nested maps and lists.
// A nil map stays nil.
func RedactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsSensitiveFieldName(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case string:
		return FilterSensitiveValue(t)
	case map[string]any:
		return RedactMap(t)
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return RedactMap(out)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = redactValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = FilterSensitiveValue(e)
		}
		return out
	default:
		return v
	}
}

// FilteringWriter scrubs each write before passing it on. The CLI puts one
// in front of the rotated log file.
type FilteringWriter struct {
	dst io.Writer
}

// NewFilteringWriter wraps dst.
func NewFilteringWriter(dst io.Writer) *FilteringWriter {
	return &FilteringWriter{dst: dst}
}

// Write reports len(p) on success even when redaction changed the length.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(fw.dst, FilterSensitiveValue(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
