package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/law-makers/mediacrawl/internal/utils/output"
)

// Settings is the persisted key/value file edited by `mediacrawl set`.
type Settings struct {
	path   string
	values map[string]string
}

// OpenSettings reads the settings file at path. A missing file yields empty
// settings.
func OpenSettings(path string) (*Settings, error) {
	s := &Settings{path: path, values: map[string]string{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if s.values == nil {
		s.values = map[string]string{}
	}
	return s, nil
}

// Path returns the file backing s
func (s *Settings) Path() string { return s.path }

// Get returns the stored value for key.
func (s *Settings) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set validates value for key and stores it. The file is written by Save.
func (s *Settings) Set(key, value string) error {
	if err := Default().Set(key, value); err != nil {
		return err
	}
	s.values[key] = value
	return nil
}

// Unset removes key. Removing an absent key is not an error.
func (s *Settings) Unset(key string) error {
	if _, ok := lookupSetting(key); !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	delete(s.values, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the stored map
func (s *Settings) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Save writes the settings file, creating its directory.
func (s *Settings) Save() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := output.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Value returns the effective value of key in c, formatted the way Set
// accepts it.
func (c *Config) Value(key string) (string, error) {
	st, ok := lookupSetting(key)
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return formatValue(st, c), nil
}

func formatValue(s setting, c *Config) string {
	switch p := s.field(c).(type) {
	case *string:
		return *p
	case *bool:
		return strconv.FormatBool(*p)
	case *int:
		return strconv.Itoa(*p)
	case *time.Duration:
		return p.String()
	}
	return ""
}
