package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".ndireport"

// File is the structure of the .ndireport configuration file.
// Options left out of the file keep their defaults.
type File struct {
	Controller     string        `yaml:"ndi_ip,omitempty"`
	Domain         string        `yaml:"domain,omitempty"`
	Username       string        `yaml:"username,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	SiteName       string        `yaml:"site_name,omitempty"`
	VerifyTLS      *bool         `yaml:"verify_tls,omitempty"`
	CAFile         string        `yaml:"ca_file,omitempty"`
	Proxy          string        `yaml:"proxy,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
	ReadTimeout    time.Duration `yaml:"read_timeout,omitempty"`
	PageSize       int           `yaml:"page_size,omitempty"`
	Format         string        `yaml:"format,omitempty"`
	OutputDir      string        `yaml:"output_dir,omitempty"`
	History        *bool         `yaml:"history,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
//
// Durations are written the way time.ParseDuration reads them ("5s", "1m").
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, if specified
//  2. .ndireport in the current directory
//  3. .ndireport in the user's home directory
//  4. config.yaml in the XDG config directory
//
// Returns the path of the file found, or an empty string.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
