package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadUsersFile reads accounts from a YAML file of the form
//
//	users:
//	  - name: alice
//	    password: secret
//	    root: /srv/ftp/alice
//
// A bare list of accounts without the users key is accepted too. Scalar
// values are weakly typed, so a numeric password such as 1234 is read as a
// string.
func LoadUsersFile(path string) ([]UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse users file %s: %w", path, err)
	}
	if m, ok := raw.(map[string]any); ok {
		raw = m["users"]
	}
	if raw == nil {
		return nil, fmt.Errorf("users file %s: no users defined", path)
	}

	var users []UserConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &users,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode users file %s: %w", path, err)
	}

	return users, nil
}
