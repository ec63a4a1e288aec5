package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads and validates the application configuration. When path is empty
// it tries config.yml in the working directory. Missing sections are filled
// from Default().
func Load(path string) (AppConfig, error) {
	paths := []string{path}
	if path == "" {
		paths = []string{"config.yml", "./config/config.yml"}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 16181
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "chronos.db"
	}
	if cfg.Watcher.CheckIntervalSec == 0 {
		cfg.Watcher.CheckIntervalSec = 60
	}
	if cfg.Watcher.CooldownMin == 0 {
		cfg.Watcher.CooldownMin = 30
	}
	if cfg.Jobs.CheckEventsSec == 0 {
		cfg.Jobs.CheckEventsSec = 60
	}
	if cfg.Jobs.ChangeDetectionSec == 0 {
		cfg.Jobs.ChangeDetectionSec = 30
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = DefaultSchedule().Timezone
	}
}
