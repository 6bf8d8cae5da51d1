// Package config loads the server configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the EVENTPASS_CONFIG environment variable. Without a file the built-in
// defaults apply. A handful of deployment secrets and endpoints are then
// taken from the environment when set: DATABASE_URL, PORT, JWT_SECRET,
// ADMIN_PASSWORD_HASH, REDIS_URL and KAFKA_BROKERS.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/eventpass/backend/internal/engine"
	"github.com/eventpass/backend/internal/models"
	"github.com/eventpass/backend/internal/money"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "EVENTPASS_CONFIG"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Engine   EngineConfig   `yaml:"engine"`
	Events   EventsConfig   `yaml:"events"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// URL is a Postgres DSN. Empty runs the engine on an in-memory journal
	// that publishes each event synchronously.
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	// AdminPasswordHash is the bcrypt hash of the admin account's password.
	// Empty leaves the admin unable to log in.
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

type EngineConfig struct {
	Admin string `yaml:"admin"`
	// Decimals is the number of decimal places of the payment unit.
	Decimals int32 `yaml:"decimals"`
	// Prices maps tier name to a decimal price in major units.
	Prices        map[string]string `yaml:"prices"`
	Cooldown      time.Duration     `yaml:"cooldown"`
	LockPeriod    time.Duration     `yaml:"lock_period"`
	MaxPerWallet  int               `yaml:"max_per_wallet"`
	CooldownScope []string          `yaml:"cooldown_scope"`
}

type EventsConfig struct {
	WebhookURL    string   `yaml:"webhook_url"`
	WebhookSecret string   `yaml:"webhook_secret"`
	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaTopic    string   `yaml:"kafka_topic"`
	RedisURL      string   `yaml:"redis_url"`
	RedisStream   string   `yaml:"redis_stream"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	prices := make(map[string]string, models.NumTiers)
	for _, t := range models.Tiers() {
		prices[t.String()] = money.Format(engine.DefaultPrices()[t], money.DefaultDecimals)
	}
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ShutdownTimeout: 15 * time.Second,
		},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		Engine: EngineConfig{
			Admin:        "admin",
			Decimals:     money.DefaultDecimals,
			Prices:       prices,
			Cooldown:     engine.DefaultCooldown,
			LockPeriod:   engine.DefaultLockPeriod,
			MaxPerWallet: engine.DefaultMaxPerWallet,
		},
		Events: EventsConfig{
			KafkaTopic:  "ticket-events",
			RedisStream: "ticket-events",
		},
	}
}

// Load reads path, or the file named by EVENTPASS_CONFIG when path is empty,
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file over the current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := getenv("ADMIN_PASSWORD_HASH"); v != "" {
		c.Auth.AdminPasswordHash = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Events.RedisURL = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Events.KafkaBrokers = brokers
	}
}

// Validate reports every configuration error at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (or JWT_SECRET) is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.AdminPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Auth.AdminPasswordHash)); err != nil {
			errs = append(errs, fmt.Errorf("auth.admin_password_hash: %w", err))
		}
	}
	if c.Engine.Decimals < 0 || c.Engine.Decimals > 18 {
		errs = append(errs, fmt.Errorf("engine.decimals %d out of range 0..18", c.Engine.Decimals))
	}
	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		errs = append(errs, errors.New("events.kafka_topic is required with kafka brokers"))
	}
	if c.Events.RedisURL != "" && c.Events.RedisStream == "" {
		errs = append(errs, errors.New("events.redis_stream is required with a redis url"))
	}
	if _, err := c.EngineConfig(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// EngineConfig converts the engine section into engine.Config.
func (c *Config) EngineConfig() (engine.Config, error) {
	ec := engine.Config{
		Admin:        models.Identity(c.Engine.Admin),
		Cooldown:     c.Engine.Cooldown,
		LockPeriod:   c.Engine.LockPeriod,
		MaxPerWallet: c.Engine.MaxPerWallet,
	}
	seen := make(map[models.Tier]bool, models.NumTiers)
	for name, raw := range c.Engine.Prices {
		tier, err := models.ParseTier(name)
		if err != nil {
			return engine.Config{}, fmt.Errorf("engine.prices: %w", err)
		}
		amt, err := money.Parse(raw, c.Engine.Decimals)
		if err != nil {
			return engine.Config{}, fmt.Errorf("engine.prices.%s: %w", name, err)
		}
		ec.Prices[tier] = amt
		seen[tier] = true
	}
	for _, t := range models.Tiers() {
		if !seen[t] {
			return engine.Config{}, fmt.Errorf("engine.prices: missing price for %s", t)
		}
	}
	if c.Engine.CooldownScope != nil {
		ec.CooldownScope = make([]engine.Operation, 0, len(c.Engine.CooldownScope))
		for _, op := range c.Engine.CooldownScope {
			ec.CooldownScope = append(ec.CooldownScope, engine.Operation(op))
		}
	}
	if err := ec.Validate(); err != nil {
		return engine.Config{}, err
	}
	return ec, nil
}
