package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var sectionComments = map[string]string{
	"logging": "# Logging: level is DEBUG, INFO, WARN or ERROR; format is text or json;\n# output is stdout, stderr or a file path.",
	"server": "# FTP server. Zero limits mean no limit. Durations use Go syntax (30s, 5m).\n" +
		"# Set public_host when clients reach the server through NAT.",
	"metrics": "# Prometheus endpoint.",
	"users": "# Accounts. role is normal, blocked or notallowed. The password may be a\n" +
		"# bcrypt hash generated with: ftpd --hash-password",
}

func sampleConfig() Config {
	cfg := Config{
		Server: ServerConfig{
			WelcomeMessage:  "ftpjail ready",
			DataConnTimeout: 30 * time.Second,
		},
		Users: []UserConfig{
			{Name: "alice", Password: "change-me", Root: "/srv/ftp/alice"},
		},
	}
	ApplyDefaults(&cfg)
	return cfg
}

// InitConfig writes a sample configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration to path, creating parent
// directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	data, err := renderSampleConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func renderSampleConfig() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(sampleConfig()); err != nil {
		return nil, fmt.Errorf("failed to encode sample config: %w", err)
	}
	doc.HeadComment = "# ftpjail configuration file"

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if c, ok := sectionComments[key.Value]; ok {
			key.HeadComment = c
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to render sample config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
