package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Network   NetworkConfig   `mapstructure:"network"`
	Signer    SignerConfig    `mapstructure:"signer"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Plan      PlanConfig      `mapstructure:"plan"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// NetworkConfig identifies the target chain.
type NetworkConfig struct {
	// Name keys the ledger. A ledger written for another name is refused.
	Name   string `mapstructure:"name"`
	RPCURL string `mapstructure:"rpc_url"`

	// ChainID, when non-zero, must match what the node reports.
	ChainID        int64         `mapstructure:"chain_id"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// SignerConfig holds the deployer key. Either PrivateKey (hex) or KeyFile
// (base64 AES-256-GCM ciphertext, opened with EncryptionKey) is used.
// Set via CHAINDEPLOY_SIGNER_PRIVATE_KEY or CHAINDEPLOY_SIGNER_ENCRYPTION_KEY
// rather than in a config file.
type SignerConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	KeyFile       string `mapstructure:"key_file"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

// LedgerConfig selects where the ledger lives.
type LedgerConfig struct {
	Backend string `mapstructure:"backend"` // "file" or "sqlite"
	Dir     string `mapstructure:"dir"`     // file backend
	DSN     string `mapstructure:"dsn"`     // sqlite backend
}

// ArtifactsConfig locates compiled contract artifacts.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
}

// PlanConfig locates the plan and supplies variables that override the
// plan's own. Variables are KEY=VALUE pairs so their case survives.
type PlanConfig struct {
	Path      string   `mapstructure:"path"`
	Variables []string `mapstructure:"variables"`
}

// MetricsConfig holds run metrics output.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("network.name", "")
	v.SetDefault("network.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("network.chain_id", 0)
	v.SetDefault("network.confirm_timeout", "5m")
	v.SetDefault("network.poll_interval", "2s")
	v.SetDefault("signer.private_key", "")
	v.SetDefault("signer.key_file", "")
	v.SetDefault("signer.encryption_key", "")
	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.dir", "./deployments")
	v.SetDefault("ledger.dsn", "./deployments/ledger.db")
	v.SetDefault("artifacts.dir", "./artifacts")
	v.SetDefault("plan.path", "./deploy.yaml")
	v.SetDefault("plan.variables", []string{})
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("CHAINDEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings a deployment run needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Network.Name == "" {
		errs = append(errs, errors.New("network.name is required"))
	}
	if c.Network.RPCURL == "" {
		errs = append(errs, errors.New("network.rpc_url is required"))
	}
	if c.Network.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("network.confirm_timeout must be positive"))
	}
	switch c.Ledger.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("ledger.backend %q must be file or sqlite", c.Ledger.Backend))
	}
	if c.Signer.PrivateKey == "" && c.Signer.KeyFile == "" {
		errs = append(errs, errors.New("signer.private_key or signer.key_file is required"))
	}
	if c.Signer.KeyFile != "" && c.Signer.EncryptionKey == "" {
		errs = append(errs, errors.New("signer.encryption_key is required with signer.key_file"))
	}
	if _, err := c.PlanVariables(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PlanVariables parses plan.variables into a map.
func (c *Config) PlanVariables() (map[string]string, error) {
	vars := make(map[string]string, len(c.Plan.Variables))
	for _, kv := range c.Plan.Variables {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("plan.variables entry %q must be KEY=VALUE", kv)
		}
		vars[key] = value
	}
	return vars, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
