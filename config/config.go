// Package config loads and validates the ztforge service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Storage  StorageConfig  `toml:"storage"`
	Geo      GeoConfig      `toml:"geo"`
	Risk     RiskConfig     `toml:"risk"`
	Authn    AuthnConfig    `toml:"authn"`
	Authz    AuthzConfig    `toml:"authz"`
	Behavior BehaviorConfig `toml:"behavior"`
	Monitor  MonitorConfig  `toml:"monitor"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Bind         string        `toml:"bind"`
	ReadTimeout  time.Duration `toml:"readTimeout"`
	WriteTimeout time.Duration `toml:"writeTimeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// StorageConfig selects and configures the snapshot store backend
type StorageConfig struct {
	Backend string      `toml:"backend"` // memory or redis
	Redis   RedisConfig `toml:"redis"`
}

// RedisConfig contains Redis snapshot store configuration
type RedisConfig struct {
	Addr         string        `toml:"addr"`
	Password     string        `toml:"password"`
	DB           int           `toml:"db"`
	KeyPrefix    string        `toml:"keyPrefix"`
	PoolSize     int           `toml:"poolSize"`
	DialTimeout  time.Duration `toml:"dialTimeout"`
	ReadTimeout  time.Duration `toml:"readTimeout"`
	WriteTimeout time.Duration `toml:"writeTimeout"`
}

// GeoConfig contains geolocation signal configuration
type GeoConfig struct {
	DatabasePath  string        `toml:"databasePath"`
	LookupTimeout time.Duration `toml:"lookupTimeout"`
}

// RiskConfig contains risk scoring weights and the expected activity window.
// Weights are policy, not literals: operators retune them without a rebuild.
type RiskConfig struct {
	UnknownDeviceWeight   float64 `toml:"unknownDeviceWeight"`
	ForeignLocationWeight float64 `toml:"foreignLocationWeight"`
	UnusualTimeWeight     float64 `toml:"unusualTimeWeight"`
	BehavioralWeight      float64 `toml:"behavioralWeight"`
	ActiveHourStart       int     `toml:"activeHourStart"`
	ActiveHourEnd         int     `toml:"activeHourEnd"`
}

// AuthnConfig contains adaptive authentication policy parameters
type AuthnConfig struct {
	BiometricTrustBonus  float64 `toml:"biometricTrustBonus"`
	PossessionTrustBonus float64 `toml:"possessionTrustBonus"`
	LowRiskCeiling       float64 `toml:"lowRiskCeiling"`
	MediumRiskCeiling    float64 `toml:"mediumRiskCeiling"`
	HighRiskCeiling      float64 `toml:"highRiskCeiling"`
	HighTrustFloor       float64 `toml:"highTrustFloor"`
	MediumTrustFloor     float64 `toml:"mediumTrustFloor"`
	LowTrustFloor        float64 `toml:"lowTrustFloor"`
}

// AuthzConfig contains authorization engine parameters
type AuthzConfig struct {
	HighRiskThreshold float64 `toml:"highRiskThreshold"`
}

// BehaviorConfig contains behavioral baseline tracking parameters
type BehaviorConfig struct {
	// RecencyWeight is the exponential weight applied to new samples
	// when updating a baseline. Must lie in (0,1].
	RecencyWeight float64 `toml:"recencyWeight"`
}

// MonitorConfig contains monitoring loop configuration
type MonitorConfig struct {
	Interval time.Duration `toml:"interval"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:         ":8470",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				KeyPrefix:    "ztforge:",
				PoolSize:     10,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
		Geo: GeoConfig{
			DatabasePath:  "/usr/share/GeoIP/GeoLite2-City.mmdb",
			LookupTimeout: 2 * time.Second,
		},
		Risk: RiskConfig{
			UnknownDeviceWeight:   0.30,
			ForeignLocationWeight: 0.20,
			UnusualTimeWeight:     0.10,
			BehavioralWeight:      0.40,
			ActiveHourStart:       6,
			ActiveHourEnd:         22,
		},
		Authn: AuthnConfig{
			BiometricTrustBonus:  0.20,
			PossessionTrustBonus: 0.10,
			LowRiskCeiling:       0.3,
			MediumRiskCeiling:    0.6,
			HighRiskCeiling:      0.8,
			HighTrustFloor:       0.8,
			MediumTrustFloor:     0.6,
			LowTrustFloor:        0.4,
		},
		Authz: AuthzConfig{
			HighRiskThreshold: 0.7,
		},
		Behavior: BehaviorConfig{
			RecencyWeight: 0.3,
		},
		Monitor: MonitorConfig{
			Interval: 30 * time.Second,
		},
	}
}

// LoadConfig loads configuration from a TOML file, applying defaults first
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	weights := map[string]float64{
		"risk.unknownDeviceWeight":   c.Risk.UnknownDeviceWeight,
		"risk.foreignLocationWeight": c.Risk.ForeignLocationWeight,
		"risk.unusualTimeWeight":     c.Risk.UnusualTimeWeight,
		"risk.behavioralWeight":      c.Risk.BehavioralWeight,
		"authn.biometricTrustBonus":  c.Authn.BiometricTrustBonus,
		"authn.possessionTrustBonus": c.Authn.PossessionTrustBonus,
		"authz.highRiskThreshold":    c.Authz.HighRiskThreshold,
	}
	for name, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, w)
		}
	}

	if c.Behavior.RecencyWeight <= 0 || c.Behavior.RecencyWeight > 1 {
		return fmt.Errorf("behavior.recencyWeight must be in (0,1], got %v", c.Behavior.RecencyWeight)
	}

	if c.Risk.ActiveHourStart < 0 || c.Risk.ActiveHourStart > 23 ||
		c.Risk.ActiveHourEnd < 0 || c.Risk.ActiveHourEnd > 23 {
		return fmt.Errorf("risk active hours must be in [0,23]")
	}

	switch c.Storage.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}
