package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

const (
	appName   = "folio-migration-cli"
	envPrefix = "FMC"
)

// Defaults are the values every key falls back to when it is not persisted.
var Defaults = map[string]any{
	KeyWorkDir:                      "./wd",
	KeyOkapi:                        "http://localhost:9130",
	KeyTenant:                       "diku",
	KeyModWorkflow:                  "http://localhost:9001",
	KeyModDataExtractor:             "http://localhost:9002",
	KeyModExternalReferenceResolver: "http://localhost:9003",
	KeyDebug:                        false,
}

// Store is the persisted key/value configuration. Values written through the
// Store are saved to a JSON file; reads layer defaults, the file and FMC_*
// environment variables, in that order of precedence.
type Store struct {
	path string
	file *viper.Viper
}

// DefaultPath returns the per-user location of the configuration file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(dir, appName, "config.json"), nil
}

// Open loads the store at path, or at DefaultPath when path is empty.
// A missing file is not an error; it is created on the first write.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if filepath.Ext(path) == "" {
		return nil, fmt.Errorf("config file %s needs an extension such as .json", path)
	}

	s := &Store{path: path, file: viper.New()}
	if _, err := os.Stat(path); err == nil {
		s.file.SetConfigFile(path)
		if err := s.file.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) view() *viper.Viper {
	v := viper.New()
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
	_ = v.MergeConfigMap(s.file.AllSettings())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Get returns the effective value of key, or nil if it is unset.
func (s *Store) Get(key string) any {
	return s.view().Get(key)
}

// All returns every effective setting.
func (s *Store) All() map[string]any {
	return s.view().AllSettings()
}

// Keys returns the sorted list of effective keys.
func (s *Store) Keys() []string {
	keys := s.view().AllKeys()
	sort.Strings(keys)
	return keys
}

// Set persists value under key.
func (s *Store) Set(key string, value any) error {
	s.file.Set(key, value)
	return s.save()
}

// Delete removes key from the file. The key keeps its default, if any.
func (s *Store) Delete(key string) error {
	settings := s.file.AllSettings()
	deleteNested(settings, strings.Split(strings.ToLower(key), "."))
	s.file = viper.New()
	if err := s.file.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to rebuild config: %w", err)
	}
	return s.save()
}

// Reset returns key to its default value.
func (s *Store) Reset(key string) error {
	return s.Delete(key)
}

// Clear drops every persisted value.
func (s *Store) Clear() error {
	s.file = viper.New()
	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := s.file.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func deleteNested(m map[string]any, path []string) {
	if len(path) == 1 {
		delete(m, path[0])
		return
	}
	child, ok := m[path[0]].(map[string]any)
	if !ok {
		return
	}
	deleteNested(child, path[1:])
	if len(child) == 0 {
		delete(m, path[0])
	}
}
