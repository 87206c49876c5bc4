// Package config handles configuration loading from the persisted store and environment variables.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cast"
)

// Configuration keys understood by the CLI. Any other key may still be
// stored and referenced from templates.
const (
	KeyWorkDir                      = "wd"
	KeyOkapi                        = "okapi"
	KeyTenant                       = "tenant"
	KeyToken                        = "token"
	KeyUsername                     = "username"
	KeyPassword                     = "password"
	KeyModWorkflow                  = "mod-workflow"
	KeyModDataExtractor             = "mod-data-extractor"
	KeyModExternalReferenceResolver = "mod-external-reference-resolver"
	KeyDebug                        = "debug"
)

// Config is the configuration of one process run. It is built once and
// treated as read-only afterwards.
type Config struct {
	WorkDir                      string
	OkapiURL                     string
	Tenant                       string
	Token                        string
	Username                     string
	Password                     string
	ModWorkflow                  string
	ModDataExtractor             string
	ModExternalReferenceResolver string
	Debug                        bool

	// Values holds every effective setting keyed by its dotted, lower-case
	// name. It is the source for template placeholders.
	Values map[string]any
}

// Load opens the store at configFile and builds a Config from it.
func Load(configFile string) (*Config, error) {
	store, err := Open(configFile)
	if err != nil {
		return nil, err
	}
	return FromStore(store), nil
}

// FromStore builds a Config from the effective values of a Store.
func FromStore(s *Store) *Config {
	v := s.view()
	return &Config{
		WorkDir:                      v.GetString(KeyWorkDir),
		OkapiURL:                     v.GetString(KeyOkapi),
		Tenant:                       v.GetString(KeyTenant),
		Token:                        v.GetString(KeyToken),
		Username:                     v.GetString(KeyUsername),
		Password:                     v.GetString(KeyPassword),
		ModWorkflow:                  v.GetString(KeyModWorkflow),
		ModDataExtractor:             v.GetString(KeyModDataExtractor),
		ModExternalReferenceResolver: v.GetString(KeyModExternalReferenceResolver),
		Debug:                        v.GetBool(KeyDebug),
		Values:                       Flatten(v.AllSettings()),
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("%s is required", KeyWorkDir)
	}
	if c.OkapiURL == "" {
		return fmt.Errorf("%s is required", KeyOkapi)
	}
	return nil
}

// WorkflowPath returns the directory of the named workflow.
func (c *Config) WorkflowPath(name string) string {
	return filepath.Join(c.WorkDir, name)
}

// Flatten turns nested settings into a single level keyed by dotted paths.
func Flatten(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	flattenInto(out, "", settings)
	return out
}

func flattenInto(out map[string]any, prefix string, settings map[string]any) {
	for key, value := range settings {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, err := cast.ToStringMapE(value); err == nil && isMap(value) {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = value
	}
}

func isMap(value any) bool {
	switch value.(type) {
	case map[string]any, map[any]any:
		return true
	}
	return false
}
