package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lherron/homeplan/internal/domain"
	"gopkg.in/yaml.v3"
)

// LocalDBPath is the project-local database location, used when present.
const LocalDBPath = ".homeplan/homeplan.db"

// Config represents the application configuration
type Config struct {
	DBPath           string `yaml:"db_path"`
	AttachDir        string `yaml:"attach_dir"`
	AttachmentsMaxMB int    `yaml:"attachments_max_mb"`
	LogLevel         string `yaml:"log_level"`
	LogEncoding      string `yaml:"log_encoding"`
	DefaultActor     string `yaml:"actor"`
	DefaultUnit      string `yaml:"unit"`
	RemoteFile       string `yaml:"remote_file"`
	RemoteView       string `yaml:"remote_view"`
	Output           string `yaml:"output"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/homeplan/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		AttachmentsMaxMB: 25,
		LogLevel:         "warn",
		LogEncoding:      "console",
		DefaultActor:     string(domain.ActorHuman),
		DefaultUnit:      string(domain.UnitInches),
		RemoteView:       "Planner",
		Output:           "table",
	}

	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// the YAML file is optional
	if err := loadYAMLConfig(cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if dbPath := getEnvOrFile("HOMEPLAN_DB_PATH", "HOMEPLAN_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	for env, dst := range map[string]*string{
		"HOMEPLAN_ATTACH_DIR":   &cfg.AttachDir,
		"HOMEPLAN_LOG_LEVEL":    &cfg.LogLevel,
		"HOMEPLAN_LOG_ENCODING": &cfg.LogEncoding,
		"HOMEPLAN_ACTOR":        &cfg.DefaultActor,
		"HOMEPLAN_UNIT":         &cfg.DefaultUnit,
		"HOMEPLAN_REMOTE_FILE":  &cfg.RemoteFile,
		"HOMEPLAN_REMOTE_VIEW":  &cfg.RemoteView,
		"HOMEPLAN_OUTPUT":       &cfg.Output,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	if cfg.DBPath == "" {
		if _, err := os.Stat(LocalDBPath); err == nil {
			cfg.DBPath = LocalDBPath
		} else {
			dataDir, err := dataDir()
			if err != nil {
				return nil, err
			}
			cfg.DBPath = filepath.Join(dataDir, "homeplan.db")
		}
	}

	if cfg.AttachDir == "" {
		if cfg.DBPath == LocalDBPath {
			cfg.AttachDir = filepath.Join(filepath.Dir(LocalDBPath), "attachments")
		} else {
			dataDir, err := dataDir()
			if err != nil {
				return nil, err
			}
			cfg.AttachDir = filepath.Join(dataDir, "attachments")
		}
	}

	return cfg, nil
}

func dataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "homeplan"), nil
}

// loadYAMLConfig loads configuration from ~/.config/homeplan/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(homeDir, ".config", "homeplan", "config.yaml"))
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Actor returns the configured authoring actor. Only human and ai are
// accepted from configuration.
func (c *Config) Actor() (domain.Actor, error) {
	switch a := domain.Actor(strings.ToLower(strings.TrimSpace(c.DefaultActor))); a {
	case "", domain.ActorHuman:
		return domain.ActorHuman, nil
	case domain.ActorAI:
		return domain.ActorAI, nil
	default:
		return "", fmt.Errorf("invalid actor %q (want human or ai)", c.DefaultActor)
	}
}

// Unit returns the configured presentation unit for lengths.
func (c *Config) Unit() (domain.Unit, error) {
	return domain.ParseUnit(c.DefaultUnit)
}

// AttachMaxMB returns the attachment size limit in megabytes.
func (c *Config) AttachMaxMB() int64 {
	if c.AttachmentsMaxMB < 0 {
		return 0
	}
	return int64(c.AttachmentsMaxMB)
}
