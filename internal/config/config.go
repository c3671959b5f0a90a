package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type DiscordConfig struct {
	Token       string `yaml:"token" env:"DISCORD_TOKEN,required"`
	ClientID    string `yaml:"client_id" env:"DISCORD_CLIENT_ID,required"`
	Permissions int64  `yaml:"-"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST,required"`
	Port     int    `yaml:"port" env:"DB_PORT,required"`
	User     string `yaml:"user" env:"DB_USER,required"`
	Password string `yaml:"password" env:"DB_PASSWORD,required"`
	DBName   string `yaml:"dbname" env:"DB_NAME,required"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE,required"`
	MaxConns int32  `yaml:"max_conns"`
}

// DSN renders the connection string used by pgxpool.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type SchedulingConfig struct {
	// Timezone is the IANA zone used when a guild has not configured its own.
	Timezone              string        `yaml:"timezone"`
	DefaultLockoutMinutes int           `yaml:"default_lockout_minutes"`
	InteractionTimeout    time.Duration `yaml:"interaction_timeout"`
	// TemplateHorizonDays bounds how far ahead recurring templates are stamped.
	TemplateHorizonDays int `yaml:"template_horizon_days"`
	MaxRecurrence       int `yaml:"max_recurrence"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
	// PublicURL is where the calendar feeds are reachable from outside.
	PublicURL string `yaml:"public_url"`
	// FeedSecret keys the per-guild feed tokens. Feeds are off without it.
	FeedSecret string `yaml:"feed_secret"`
}

type JobsConfig struct {
	RefreshSpec string `yaml:"refresh_spec"`
}

type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	HTTP       HTTPConfig       `yaml:"http"`
	Jobs       JobsConfig       `yaml:"jobs"`
	LogLevel   string           `yaml:"log_level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data, os.Environ())
}

// Parse substitutes ${VAR} placeholders from environ before decoding.
func Parse(data []byte, environ []string) (*Config, error) {
	content := string(data)
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 {
			continue
		}
		env[pair[0]] = pair[1]
		placeholder := "${" + pair[0] + "}"
		content = strings.ReplaceAll(content, placeholder, pair[1])
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// DB_PORT arrives as a string when set through the environment
	if portStr := env["DB_PORT"]; portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT value: %w", err)
		}
		cfg.Database.Port = port
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills in zero values with defaults.
func (c *Config) Normalize() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Scheduling.Timezone == "" {
		c.Scheduling.Timezone = "UTC"
	}
	if c.Scheduling.DefaultLockoutMinutes <= 0 {
		c.Scheduling.DefaultLockoutMinutes = 60
	}
	if c.Scheduling.InteractionTimeout <= 0 {
		c.Scheduling.InteractionTimeout = 10 * time.Minute
	}
	if c.Scheduling.TemplateHorizonDays <= 0 {
		c.Scheduling.TemplateHorizonDays = 60
	}
	if c.Scheduling.MaxRecurrence <= 0 {
		c.Scheduling.MaxRecurrence = 12
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = "127.0.0.1:8080"
	}
	if c.Jobs.RefreshSpec == "" {
		c.Jobs.RefreshSpec = "@every 1m"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required")
	}
	if c.Discord.ClientID == "" {
		return fmt.Errorf("discord.client_id is required")
	}
	if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil {
		return fmt.Errorf("invalid scheduling.timezone %q: %w", c.Scheduling.Timezone, err)
	}
	return nil
}

// Location returns the default scheduling timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduling.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
