// Package config loads process configuration from an optional YAML file
// with environment overrides. The environment is authoritative so deploys
// can run file-less.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the optional YAML file.
const ConfigPath = "config.yaml"

// FileConfig represents the bot's configuration.
type FileConfig struct {
	BotToken      string `yaml:"botToken"`
	MongoURI      string `yaml:"mongoURI"`
	MongoDatabase string `yaml:"mongoDatabase"`
	AdminID       int64  `yaml:"adminID"`
	Port          string `yaml:"port"`
	LogLevel      string `yaml:"logLevel"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	SessionTTL    string `yaml:"sessionTTL"`
	RateLimit     int    `yaml:"rateLimit"`
	RateWindow    string `yaml:"rateWindow"`
}

// Load reads config from path (defaults to config.yaml; a missing file is
// fine), then applies environment overrides and validates.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		cfg.MongoDatabase = v
	}
	if v := os.Getenv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("config: ADMIN_ID must be a numeric id: %w", err)
		}
		cfg.AdminID = id
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		cfg.SessionTTL = v
	}

	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = "AnimeBotDB"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "24h"
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateWindow == "" {
		cfg.RateWindow = "10s"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.BotToken == "" {
		return errors.New("config: botToken is required (set BOT_TOKEN)")
	}
	if cfg.MongoURI == "" {
		return errors.New("config: mongoURI is required (set MONGO_URI)")
	}
	if cfg.AdminID == 0 {
		return errors.New("config: adminID is required (set ADMIN_ID)")
	}
	if _, err := cfg.ParseSessionTTL(); err != nil {
		return err
	}
	if _, err := cfg.ParseRateWindow(); err != nil {
		return err
	}
	return nil
}

// ParseSessionTTL returns the conversation-session TTL.
func (c FileConfig) ParseSessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("config: sessionTTL is not a duration: %w", err)
	}
	return d, nil
}

// ParseRateWindow returns the flood-limit window.
func (c FileConfig) ParseRateWindow() (time.Duration, error) {
	d, err := time.ParseDuration(c.RateWindow)
	if err != nil {
		return 0, fmt.Errorf("config: rateWindow is not a duration: %w", err)
	}
	return d, nil
}
