package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultYAML renders the built-in settings as a YAML document.
func DefaultYAML() ([]byte, error) {
	v := newViper()
	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return nil, wrapError(err, "Failed to render default config", "")
	}
	return data, nil
}

// WriteDefault writes the built-in settings to path. An existing file is only
// replaced when force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		path = FileName
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return newError("Config file already exists: "+path, "Use --force to overwrite it")
		}
	}

	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	header := []byte("# sysaura collector configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return wrapError(err, "Failed to write "+path, "Check directory permissions")
	}
	return nil
}
