package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the bot and the CLI.
type Config struct {
	TelegramToken   string
	DatabaseURL     string
	SharedStoreURL  string
	StorePrefix     string
	ActivitiesKey   string
	SettingsKey     string
	StoreTimeout    time.Duration
	ReminderTime    string
	DigestTime      string
	RefreshInterval time.Duration
	DefaultActor    string
	Location        *time.Location
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:  env("TELEGRAM_TOKEN"),
		DatabaseURL:    env("DATABASE_URL"),
		SharedStoreURL: env("SHARED_STORE_URL"),
		StorePrefix:    env("STORE_PREFIX"),
		ActivitiesKey:  env("ACTIVITIES_KEY"),
		SettingsKey:    env("EMAIL_SETTINGS_KEY"),
		ReminderTime:   env("REMINDER_TIME"),
		DigestTime:     env("DIGEST_TIME"),
		DefaultActor:   env("DEFAULT_ACTOR"),
		Location:       time.Local,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "research_scheduler.db"
	}
	if cfg.ReminderTime == "" {
		cfg.ReminderTime = "08:00"
	}
	if cfg.DigestTime == "" {
		cfg.DigestTime = "08:30"
	}
	if cfg.DefaultActor == "" {
		cfg.DefaultActor = "Utente"
	}

	var err error
	if cfg.StoreTimeout, err = positiveInt("STORE_TIMEOUT_SECONDS", 10, time.Second); err != nil {
		return cfg, err
	}
	if cfg.RefreshInterval, err = positiveInt("REFRESH_INTERVAL_MINUTES", 5, time.Minute); err != nil {
		return cfg, err
	}

	for name, value := range map[string]string{"REMINDER_TIME": cfg.ReminderTime, "DIGEST_TIME": cfg.DigestTime} {
		if _, err := time.Parse("15:04", value); err != nil {
			return cfg, fmt.Errorf("%s must be HH:MM, got %q", name, value)
		}
	}

	if tz := env("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// RequireToken fails when the bot cannot authenticate.
func (c Config) RequireToken() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func positiveInt(name string, def int, unit time.Duration) (time.Duration, error) {
	raw := env(name)
	if raw == "" {
		return time.Duration(def) * unit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return time.Duration(n) * unit, nil
}
