package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configDirName  = "vidflow"
	configFileName = "config.json"

	// DefaultAPIURL is used when neither the flag, the env nor the config name one
	DefaultAPIURL = "http://localhost:8000/api"
	// APIURLEnv overrides the configured API URL
	APIURLEnv = "VIDFLOW_API_URL"
)

// UserConfig represents the user's local configuration stored in ~/.config/vidflow/config.json
type UserConfig struct {
	APIURL              string `json:"api_url,omitempty"`
	PreferredResolution string `json:"preferred_resolution,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetAPIURL updates the API URL and saves the config
func SetAPIURL(apiURL string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.APIURL = strings.TrimRight(apiURL, "/")
	return Save(cfg)
}

// ResolveAPIURL picks the API URL: flag, then VIDFLOW_API_URL, then the
// config file, then DefaultAPIURL
func ResolveAPIURL(flag string) (string, error) {
	if flag != "" {
		return strings.TrimRight(flag, "/"), nil
	}
	if env := os.Getenv(APIURLEnv); env != "" {
		return strings.TrimRight(env, "/"), nil
	}

	cfg, err := Load()
	if err != nil {
		return "", err
	}
	if cfg.APIURL != "" {
		return cfg.APIURL, nil
	}
	return DefaultAPIURL, nil
}
