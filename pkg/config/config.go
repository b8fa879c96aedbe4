package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	xdgAppName = "engage"
	configFile = "config.json"
	dbFile     = "engage.db"

	// EnvPrefix namespaces the environment overrides, e.g. ENGAGE_ASSIGNEE.
	EnvPrefix = "ENGAGE"

	DefaultCalendar = "Engagements"
)

// Config holds user defaults. Command-line flags override ENGAGE_*
// environment variables, which override the config file. Unprefixed names
// such as CALENDAR are never read.
type Config struct {
	Assignee      string `json:"assignee,omitempty"`
	Calendar      string `json:"calendar,omitempty"`
	OutputDir     string `json:"output_dir,omitempty" split_words:"true"`
	TemplatesFile string `json:"templates_file,omitempty" split_words:"true"`
	DBPath        string `json:"db_path,omitempty" split_words:"true"`
}

// Dir returns the per-user config directory, ~/.config/engage.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config file, applies environment overrides and fills defaults.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s_* environment: %w", EnvPrefix, err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Calendar == "" {
		c.Calendar = DefaultCalendar
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.DBPath == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		c.DBPath = filepath.Join(dir, dbFile)
	}
	c.OutputDir = expandHome(c.OutputDir)
	c.TemplatesFile = expandHome(c.TemplatesFile)
	c.DBPath = expandHome(c.DBPath)
	return nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

// Set assigns a config value by its JSON key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "assignee":
		c.Assignee = value
	case "calendar":
		c.Calendar = value
	case "output_dir":
		c.OutputDir = value
	case "templates_file":
		c.TemplatesFile = value
	case "db_path":
		c.DBPath = value
	default:
		return fmt.Errorf("unknown config key %q (want assignee, calendar, output_dir, templates_file or db_path)", key)
	}
	return nil
}

// Update loads the config file as stored (without env overrides or
// defaults), applies fn and writes it back.
func Update(fn func(*Config) error) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	cfg, err := loadFile(path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return Save(cfg)
}

func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}
