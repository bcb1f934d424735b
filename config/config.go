package config

import (
	"encoding/json"
	"os"

	"go-kvtree/pkg/bptree"

	"github.com/pkg/errors"
)

type AppConfig struct {
	Store  StoreConfig    `json:"store"`
	Tree   bptree.Options `json:"tree"`
	Log    LogConfig      `json:"log"`
	Shell  ShellConfig    `json:"shell"`
	Server ServerConfig   `json:"server"`
}

type StoreConfig struct {
	// Path of the LevelDB directory. Empty keeps the pages in memory.
	Path string `json:"path"`
	Sync bool   `json:"sync"`
}

type LogConfig struct {
	Level string `json:"level"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type ShellConfig struct {
	Prompt      string `json:"prompt"`
	HistoryFile string `json:"history_file"`
}

func New() *AppConfig {
	return &AppConfig{
		Store: StoreConfig{
			Path: "data",
			Sync: false,
		},
		Tree: bptree.Options{
			CacheSize: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
		Shell: ShellConfig{
			Prompt:      "kvtree> ",
			HistoryFile: "",
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}
}

// Load returns the defaults overlaid with the JSON file at path. Fields the
// file does not mention keep their default.
func Load(path string) (*AppConfig, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}

	d, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	if err := json.Unmarshal(d, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config '%s'", path)
	}
	return cfg, nil
}
