package enhancer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	scriptField = "script"
	jsDir       = "js"
)

var (
	lineBreaks = regexp.MustCompile(`\r\n|\n|\r`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Substitutor resolves template placeholders in fragment text.
type Substitutor interface {
	Substitute(text string) string
}

// ScriptEnhancer inlines script bodies into trigger and task definitions.
// The script is templated and flattened to a single line that can be embedded
// in a JSON string.
type ScriptEnhancer struct {
	templates Substitutor
}

// NewScriptEnhancer creates a ScriptEnhancer resolving placeholders with templates.
func NewScriptEnhancer(templates Substitutor) *ScriptEnhancer {
	return &ScriptEnhancer{templates: templates}
}

func (e *ScriptEnhancer) Kind() Kind { return KindScript }

func (e *ScriptEnhancer) Enhance(dir string, doc []byte) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("invalid JSON in script definition")
	}
	name := gjson.GetBytes(doc, scriptField)
	if name.Type != gjson.String || name.Str == "" {
		return doc, nil
	}
	content, ok, err := readFragment(filepath.Join(dir, jsDir, name.Str))
	if err != nil || !ok {
		return doc, err
	}

	out, err := sjson.SetBytes(doc, scriptField, NormalizeScript(e.templates.Substitute(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to set %s: %w", scriptField, err)
	}
	return out, nil
}

// NormalizeScript removes line breaks, collapses whitespace runs to one
// space and turns double quotes into single quotes.
func NormalizeScript(script string) string {
	script = lineBreaks.ReplaceAllString(script, "")
	script = whitespace.ReplaceAllString(script, " ")
	return strings.ReplaceAll(script, `"`, `'`)
}
