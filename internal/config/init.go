// File: internal/config/init.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# hioload-httpd configuration file
#
# Every key can be overridden by an environment variable with the
# HIOLOAD_ prefix, e.g. HIOLOAD_SERVER_LISTEN=0.0.0.0:8080.

`

// InitConfig writes the default configuration to path, or to the default
// location when path is empty. An existing file is kept unless force is set.
func InitConfig(path string, force bool) (string, error) {
	if path == "" {
		path = GetDefaultConfigPath()
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(GetDefaultConfig()); err != nil {
		return "", fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode default config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
