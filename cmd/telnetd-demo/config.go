package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the demo server's on-disk configuration. It exists to give
// the example program something real to load, not as part of the
// core's contract.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	Welcome         string        `yaml:"welcome"`
	FlushStrategy   string        `yaml:"flush_strategy"` // manual, immediate, newline, threshold
	FlushThreshold  int           `yaml:"flush_threshold"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":4000",
		Welcome:         "Welcome to the telnetd demo server.\r\n",
		FlushStrategy:   "newline",
		FlushThreshold:  512,
		RefreshInterval: time.Second,
		IdleTimeout:     10 * time.Minute,
	}
}

// loadConfig reads path if it exists, falling back to defaultConfig
// for any field the file doesn't set. A missing file is not an error:
// the demo runs fine with no config/init.lua equivalent present.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
