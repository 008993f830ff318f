package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all repflow configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath   string  `json:"db_path"`
	LogLevel string  `json:"log_level"`
	Speed    float64 `json:"speed"`
	Seed     int64   `json:"seed"`
	Profile  string  `json:"profile"` // path to a simulation profile JSON
}

func defaultConfig() Config {
	return Config{
		DBPath:   filepath.Join(repflowDir(), "repflow.db"),
		LogLevel: "info",
		Speed:    1,
		Seed:     1,
	}
}

func repflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".repflow"
	}
	return filepath.Join(home, ".repflow")
}

func settingsPath() string {
	return filepath.Join(repflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("REPFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("REPFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REPFLOW_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Speed = f
		}
	}
	if v := os.Getenv("REPFLOW_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if v := os.Getenv("REPFLOW_PROFILE"); v != "" {
		cfg.Profile = v
	}

	return cfg
}
