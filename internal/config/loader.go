package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "skuhub.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "skuhub.yml"

// Load reads settings from defaults and the given YAML file.
// An empty path loads defaults only. The result is validated.
func Load(path string) (*Settings, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var s Settings
	if err := k.UnmarshalWithConf("", &s, UnmarshalConf(&s)); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if s.Target == nil {
		s.Target = &TargetConfig{}
	}
	ApplyTargetDefaults(s.Target)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFromDir loads settings from skuhub.yaml or skuhub.yml in dir.
// Defaults are returned when neither exists.
func LoadFromDir(dir string) (*Settings, error) {
	return Load(FindConfigFile(dir))
}

// FindConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindProjectRoot walks up from the given directory to find a directory
// containing skuhub.yaml or skuhub.yml.
// Returns empty string if not found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if FindConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
