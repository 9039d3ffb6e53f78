package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Board    BoardConfig    `mapstructure:"board"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
}

type DatabaseConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BoardConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	Sources     []string      `mapstructure:"sources"`
}

type SyncConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	MaxPages      int           `mapstructure:"max_pages"`
	PageSize      int           `mapstructure:"page_size"`
	IncludePinned bool          `mapstructure:"include_pinned"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

type UIConfig struct {
	Colors UIColors `mapstructure:"colors"`
}

type UIColors struct {
	Primary string `mapstructure:"primary"`
	Muted   string `mapstructure:"muted"`
	Added   string `mapstructure:"added"`
	Removed string `mapstructure:"removed"`
	Error   string `mapstructure:"error"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dbPath := filepath.Join(homeDir, ".noticehub", "noticehub.db")

	return &Config{
		Database: DatabaseConfig{
			Path:    dbPath,
			Timeout: 1 * time.Second,
		},
		Board: BoardConfig{
			BaseURL:     "https://api.plaync.com/aion2/board",
			HTTPTimeout: 30 * time.Second,
			UserAgent:   "noticehub/1.0 (board watcher)",
			Sources:     []string{"notice", "update"},
		},
		Sync: SyncConfig{
			Interval:      10 * time.Minute,
			MaxPages:      3,
			PageSize:      20,
			IncludePinned: true,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8787",
		},
		Log: LogConfig{
			Level: "info",
			Path:  "",
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary: "#4ECDC4",
				Muted:   "#94A3B8",
				Added:   "#4ADE80",
				Removed: "#F87171",
				Error:   "#F87171",
			},
		},
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("database", cfg.Database)
	v.SetDefault("board", cfg.Board)
	v.SetDefault("sync", cfg.Sync)
	v.SetDefault("server", cfg.Server)
	v.SetDefault("log", cfg.Log)
	v.SetDefault("ui", cfg.UI)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "noticehub")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NOTICEHUB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(&config)

	return &config, nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Log.Path = expandPath(cfg.Log.Path)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations as strings for TOML readability
	dbCfg := map[string]interface{}{
		"path":    config.Database.Path,
		"timeout": config.Database.Timeout.String(),
	}

	boardCfg := map[string]interface{}{
		"base_url":     config.Board.BaseURL,
		"http_timeout": config.Board.HTTPTimeout.String(),
		"user_agent":   config.Board.UserAgent,
		"sources":      config.Board.Sources,
	}

	syncCfg := map[string]interface{}{
		"interval":       config.Sync.Interval.String(),
		"max_pages":      config.Sync.MaxPages,
		"page_size":      config.Sync.PageSize,
		"include_pinned": config.Sync.IncludePinned,
	}

	v.Set("database", dbCfg)
	v.Set("board", boardCfg)
	v.Set("sync", syncCfg)
	v.Set("server", config.Server)
	v.Set("log", config.Log)
	v.Set("ui", config.UI)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
