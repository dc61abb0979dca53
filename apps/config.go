package apps

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type configFile struct {
	Apps []App `yaml:"apps"`
}

// LoadFile reads the apps configuration from a YAML file and returns a
// validated registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read apps config %q", path)
	}
	return Load(data)
}

// Load parses YAML apps configuration.
func Load(data []byte) (*Registry, error) {
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse apps config")
	}
	if len(file.Apps) == 0 {
		return nil, errors.New("apps config declares no apps")
	}
	return NewRegistry(file.Apps)
}
