package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "pulse", "secrets.json")
}

// fileSecrets reads secrets from a flat JSON object keyed by secret name.
type fileSecrets struct {
	path string
}

func (f fileSecrets) Get(name string) (string, error) {
	secrets, err := readSecrets(f.path)
	if err != nil {
		return "", err
	}
	val, ok := secrets[name]
	if !ok {
		return "", fmt.Errorf("secret %q not found", name)
	}
	return val, nil
}

func readSecrets(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secrets file not available: %w", err)
	}
	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

// SetSecret stores a secret in the secrets file with owner-only permissions.
func SetSecret(name, value string) error {
	return writeSecret(secretsFilePath(), name, value)
}

func writeSecret(path, name, value string) error {
	secrets, err := readSecrets(path)
	if err != nil {
		secrets = make(map[string]string)
	}
	secrets[name] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
