// Package template resolves {{key}} placeholders in resource definitions
// against configuration values.
//
// Substitution is purely textual and runs before a document is parsed, so a
// placeholder may sit anywhere in the text, including inside a JSON string.
// Values are inserted as-is without JSON escaping.
package template

import (
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Substitutor replaces placeholders with the string form of configuration
// values. Unknown placeholders are left untouched.
type Substitutor struct {
	values map[string]any
}

// New creates a Substitutor over values. Keys are matched case-insensitively.
func New(values map[string]any) *Substitutor {
	lowered := make(map[string]any, len(values))
	for k, v := range values {
		lowered[strings.ToLower(k)] = v
	}
	return &Substitutor{values: lowered}
}

// Substitute returns text with every recognized placeholder resolved.
func (s *Substitutor) Substitute(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		key := strings.ToLower(placeholder.FindStringSubmatch(match)[1])
		value, ok := s.values[key]
		if !ok {
			return match
		}
		str, ok := toString(value)
		if !ok {
			return match
		}
		return str
	})
}

// SubstituteBytes is Substitute for byte slices.
func (s *Substitutor) SubstituteBytes(text []byte) []byte {
	return []byte(s.Substitute(string(text)))
}

// Lookup returns the string form of the value stored under key.
func (s *Substitutor) Lookup(key string) (string, bool) {
	value, ok := s.values[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return toString(value)
}

func toString(value any) (string, bool) {
	if value == nil {
		return "", true
	}
	if str, err := cast.ToStringE(value); err == nil {
		return str, true
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", false
	}
	return string(encoded), true
}
