package scoring

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProfileStore manages named scoring profiles stored as YAML files
type ProfileStore struct {
	dataDir string
}

// NewProfileStore creates a new profile store
func NewProfileStore(dataDir string) *ProfileStore {
	return &ProfileStore{dataDir: dataDir}
}

// Path returns the file a profile is stored in
func (s *ProfileStore) Path(name string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("%s.yaml", name))
}

// LoadProfile loads a profile by name. A missing file yields DefaultConfig.
// A present file must be complete: it is not merged with the defaults, so
// omitted thresholds surface as configuration errors at engine construction.
func (s *ProfileStore) LoadProfile(name string) (Config, error) {
	filePath := s.Path(name)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read profile %s: %w", name, err)
	}

	return DecodeProfile(data)
}

// DecodeProfile parses a YAML profile, rejecting unknown keys
func DecodeProfile(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return cfg, nil
}

// EncodeProfile renders cfg as YAML
func EncodeProfile(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveProfile writes a profile, replacing any existing file
func (s *ProfileStore) SaveProfile(name string, cfg Config) error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data, err := EncodeProfile(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.Path(name), data, 0644); err != nil {
		return fmt.Errorf("failed to write profile %s: %w", name, err)
	}
	return nil
}

// Bootstrap writes every given profile
func (s *ProfileStore) Bootstrap(profiles map[string]Config) error {
	for _, name := range sortedKeys(profiles) {
		if err := s.SaveProfile(name, profiles[name]); err != nil {
			return fmt.Errorf("failed to save profile %s: %w", name, err)
		}
	}
	return nil
}
