package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:    "", // tests point this at a t.TempDir() file
			Timeout: 1 * time.Second,
		},
		Board: BoardConfig{
			BaseURL:     "http://127.0.0.1:0",
			HTTPTimeout: 5 * time.Second,
			UserAgent:   "noticehub-test/1.0",
			Sources:     []string{"notice"},
		},
		Sync: SyncConfig{
			Interval:      1 * time.Minute,
			MaxPages:      2,
			PageSize:      10,
			IncludePinned: true,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:0",
		},
		Log: LogConfig{
			Level: "off",
		},
		UI: defaultConfig().UI,
	}
}
