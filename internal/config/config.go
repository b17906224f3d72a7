package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/pendergraft/gatewayctl/internal/validation"
)

// ErrMissingEnv is returned when a required environment variable is unset.
var ErrMissingEnv = errors.New("missing required environment variable")

// Config holds all runtime configuration for gatewayctl
type Config struct {
	NetworksFile string
	Tx           TxConfig
	RPC          RPCConfig
	Sncast       SncastConfig
	Journal      JournalConfig
	Logging      LoggingConfig
	Metrics      MetricsConfig
}

// TxConfig holds finality polling settings
type TxConfig struct {
	MaxWait      time.Duration
	PollInterval time.Duration
}

// RPCConfig holds RPC throttling settings
type RPCConfig struct {
	RateLimitRPS   int
	RateLimitBurst int
}

// SncastConfig holds settings for the sncast binary
type SncastConfig struct {
	Path string
}

// JournalConfig holds transaction journal settings
type JournalConfig struct {
	Type     string // "none", "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	TextfilePath string // empty disables metrics
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		NetworksFile: getEnv("GATEWAY_NETWORKS_FILE", ""),
		Tx: TxConfig{
			MaxWait:      time.Duration(getEnvInt("TX_MAX_WAIT_SECONDS", 600)) * time.Second,
			PollInterval: time.Duration(getEnvInt("TX_POLL_INTERVAL_SECONDS", 5)) * time.Second,
		},
		RPC: RPCConfig{
			RateLimitRPS:   getEnvInt("RPC_RATE_LIMIT_RPS", 10),
			RateLimitBurst: getEnvInt("RPC_RATE_LIMIT_BURST", 5),
		},
		Sncast: SncastConfig{
			Path: getEnv("SNCAST_PATH", "sncast"),
		},
		Journal: JournalConfig{
			Type: getEnv("JOURNAL_TYPE", "none"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/gatewayctl.db"),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Metrics: MetricsConfig{
			TextfilePath: getEnv("METRICS_TEXTFILE", ""),
		},
	}

	if cfg.Tx.PollInterval <= 0 {
		return nil, fmt.Errorf("TX_POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.RPC.RateLimitRPS <= 0 || cfg.RPC.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("RPC_RATE_LIMIT_RPS and RPC_RATE_LIMIT_BURST must be positive")
	}

	switch cfg.Journal.Type {
	case "none", "sqlite":
	case "postgres":
		if cfg.Journal.Postgres.URL == "" {
			return nil, fmt.Errorf("%w: DATABASE_URL (required by JOURNAL_TYPE=postgres)", ErrMissingEnv)
		}
	default:
		return nil, fmt.Errorf("unknown JOURNAL_TYPE: %s", cfg.Journal.Type)
	}

	return cfg, nil
}

// Credentials are the deployer identity and protocol addresses every
// state-changing command needs.
type Credentials struct {
	PrivateKey        string `envconfig:"DEPLOYER_PRIVATE_KEY" required:"true"`
	DeployerAddress   string `envconfig:"DEPLOYER_ADDRESS" required:"true"`
	TreasuryAddress   string `envconfig:"TREASURY_ADDRESS" required:"true"`
	AggregatorAddress string `envconfig:"AGGREGATOR_ADDRESS" required:"true"`
}

// LoadCredentials reads and validates the deployer credentials.
func LoadCredentials() (*Credentials, error) {
	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		// envconfig reports an unset required key as "required key X missing value"
		return nil, fmt.Errorf("%w: %v (set it in the environment or a .env file)", ErrMissingEnv, err)
	}

	for _, f := range []struct{ name, value string }{
		{"DEPLOYER_PRIVATE_KEY", c.PrivateKey},
		{"DEPLOYER_ADDRESS", c.DeployerAddress},
		{"TREASURY_ADDRESS", c.TreasuryAddress},
		{"AGGREGATOR_ADDRESS", c.AggregatorAddress},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, fmt.Errorf("%w: %s (set it in the environment or a .env file)", ErrMissingEnv, f.name)
		}
	}

	for _, f := range []struct{ name, value string }{
		{"DEPLOYER_ADDRESS", c.DeployerAddress},
		{"TREASURY_ADDRESS", c.TreasuryAddress},
		{"AGGREGATOR_ADDRESS", c.AggregatorAddress},
	} {
		if err := validation.ValidateAddress(f.value); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if !isHex(c.PrivateKey) {
		return nil, errors.New("DEPLOYER_PRIVATE_KEY must be a hex string")
	}

	return &c, nil
}

// String hides the private key.
func (c Credentials) String() string {
	return fmt.Sprintf("deployer=%s treasury=%s aggregator=%s", c.DeployerAddress, c.TreasuryAddress, c.AggregatorAddress)
}

// LoadDotEnv loads .env from the working directory. A missing file is not
// an error and existing variables are never overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// DeployerAddress returns DEPLOYER_ADDRESS without requiring the rest of the
// credentials.
func DeployerAddress() string {
	return getEnv("DEPLOYER_ADDRESS", "")
}

func isHex(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
