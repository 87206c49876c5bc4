package enhancer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	queryTemplateField = "queryTemplate"
	sqlDir             = "sql"
)

// ExtractorEnhancer inlines SQL query templates into extractor definitions.
type ExtractorEnhancer struct{}

// NewExtractorEnhancer creates an ExtractorEnhancer.
func NewExtractorEnhancer() *ExtractorEnhancer { return &ExtractorEnhancer{} }

func (e *ExtractorEnhancer) Kind() Kind { return KindExtractor }

func (e *ExtractorEnhancer) Enhance(dir string, doc []byte) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("invalid JSON in extractor definition")
	}
	name := gjson.GetBytes(doc, queryTemplateField)
	if name.Type != gjson.String || name.Str == "" {
		return doc, nil
	}
	content, ok, err := readFragment(filepath.Join(dir, sqlDir, name.Str))
	if err != nil || !ok {
		return doc, err
	}

	query := strings.TrimSpace(content)
	query = strings.TrimSuffix(query, ";")

	out, err := sjson.SetBytes(doc, queryTemplateField, query)
	if err != nil {
		return nil, fmt.Errorf("failed to set %s: %w", queryTemplateField, err)
	}
	return out, nil
}

// readFragment returns the content of path, and false if it does not exist.
func readFragment(path string) (string, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read fragment %s: %w", path, err)
	}
	return string(content), true, nil
}
