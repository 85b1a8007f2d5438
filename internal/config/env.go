package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds the environment overrides. Unset variables stay nil.
type EnvConfig struct {
	Player         *string `env:"DUNGEONLOG_PLAYER"`
	Retention      *int    `env:"DUNGEONLOG_RETENTION"`
	Modes          *string `env:"DUNGEONLOG_MODES"`
	GameData       *string `env:"DUNGEONLOG_GAME_DATA"`
	StorageBackend *string `env:"DUNGEONLOG_STORAGE_BACKEND"`
	StoragePath    *string `env:"DUNGEONLOG_STORAGE_PATH"`
	ListenAddr     *string `env:"DUNGEONLOG_LISTEN_ADDR"`
}

// ParseEnv loads overrides from the process environment.
func ParseEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ParseEnvFrom loads overrides from the given variables instead of the process
// environment.
func ParseEnvFrom(vars map[string]string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// WithEnv returns c with every set environment override applied.
func (c FileConfig) WithEnv(e EnvConfig) FileConfig {
	overlay(&c.Tracker.Player, e.Player)
	overlay(&c.Tracker.Retention, e.Retention)
	overlay(&c.Tracker.Modes, e.Modes)
	overlay(&c.Tracker.GameData, e.GameData)
	overlay(&c.Storage.Backend, e.StorageBackend)
	overlay(&c.Storage.Path, e.StoragePath)
	overlay(&c.Server.Addr, e.ListenAddr)
	return c
}

func overlay[T any](target **T, value *T) {
	if value != nil {
		*target = value
	}
}
