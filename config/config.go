package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all runtime settings for the analyst.
type Config struct {
	LLMProvider string `json:"llmProvider"` // "OpenAI" or any OpenAI-compatible endpoint
	APIKey      string `json:"apiKey"`
	BaseURL     string `json:"baseUrl"`
	ModelName   string `json:"modelName"`
	MaxTokens   int    `json:"maxTokens"`

	DatabaseEngine string `json:"databaseEngine"` // "sqlite", "mysql" or "snowflake"
	DatabasePath   string `json:"databasePath"`   // file path for sqlite, DSN otherwise

	RetryBudget          int `json:"retryBudget"`          // repair attempts per turn
	RowLimit             int `json:"rowLimit"`             // max rows returned per query
	QueryTimeoutSec      int `json:"queryTimeoutSec"`      // wall-clock cap per SQL execution
	ExecTimeoutSec       int `json:"execTimeoutSec"`       // wall-clock cap per chart execution
	CompletionTimeoutSec int `json:"completionTimeoutSec"` // cap per model call

	PythonPath     string `json:"pythonPath"`
	ChartOutputDir string `json:"chartOutputDir"`
	LogDir         string `json:"logDir"`
	DetailedLog    bool   `json:"detailedLog"`
}

// Default returns a Config with sane defaults for a local SQLite analysis
// database. API credentials are expected from the environment.
func Default() Config {
	return Config{
		LLMProvider:          "OpenAI",
		ModelName:            "gpt-4o-mini",
		MaxTokens:            2048,
		DatabaseEngine:       "sqlite",
		DatabasePath:         filepath.Join("data", "analyst.db"),
		RetryBudget:          3,
		RowLimit:             1000,
		QueryTimeoutSec:      30,
		ExecTimeoutSec:       120,
		CompletionTimeoutSec: 60,
		PythonPath:           "python3",
		ChartOutputDir:       "charts",
		LogDir:               "logs",
	}
}

// Load reads the configuration file at path, falling back to defaults for a
// missing file, then applies environment overrides. Env vars always win so
// API keys never need to live on disk.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes the configuration as indented JSON, creating the parent
// directory if needed.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ANALYST_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("ANALYST_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("ANALYST_MODEL"); v != "" {
		c.ModelName = v
	}
	if v := os.Getenv("ANALYST_DB"); v != "" {
		c.DatabasePath = v
	}
}

// Fingerprint returns a stable digest of the model-facing configuration.
// Agent handles are cached per fingerprint, so changing any of these fields
// invalidates every cached handle.
func (c Config) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", c.LLMProvider, c.BaseURL, c.ModelName, c.MaxTokens)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Validate reports configuration problems that would prevent startup.
func (c Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("modelName must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("databasePath must not be empty")
	}
	if c.RetryBudget < 1 {
		return fmt.Errorf("retryBudget must be at least 1, got %d", c.RetryBudget)
	}
	if c.RowLimit < 1 {
		return fmt.Errorf("rowLimit must be at least 1, got %d", c.RowLimit)
	}
	return nil
}
