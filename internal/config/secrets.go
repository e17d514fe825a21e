package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const apiKeyAccount = "llm_api_key"

// secretStore abstracts the local secret file for testing.
type secretStore interface {
	Get(account string) (string, error)
}

// secretsFile keeps secrets in a 0600 JSON file next to the data directory.
type secretsFile struct {
	path string
}

func defaultSecretsFile() secretsFile {
	return secretsFile{path: filepath.Join(defaultDataDir(), "secrets.json")}
}

func (s secretsFile) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (s secretsFile) Get(account string) (string, error) {
	secrets, err := s.read()
	if err != nil {
		return "", fmt.Errorf("secret store not available: %w", err)
	}
	val, ok := secrets[account]
	if !ok {
		return "", fmt.Errorf("secret %q not found", account)
	}
	return val, nil
}

func (s secretsFile) Set(account, value string) error {
	secrets, err := s.read()
	if err != nil || secrets == nil {
		secrets = make(map[string]string)
	}
	secrets[account] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}

// SetAPIKey stores the model provider API key in the local secrets file.
func SetAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("API key must not be empty")
	}
	return defaultSecretsFile().Set(apiKeyAccount, key)
}
