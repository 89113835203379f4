// Package config handles configuration loading and validation for the node.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the chain node
type Config struct {
	Node      NodeConfig      `mapstructure:"node"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Miner     MinerConfig     `mapstructure:"miner"`
	Spawner   SpawnerConfig   `mapstructure:"spawner"`
	API       APIConfig       `mapstructure:"api"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	NewRelic  NewRelicConfig  `mapstructure:"newrelic"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
	Log       LogConfig       `mapstructure:"log"`
}

// NodeConfig defines the node identity
type NodeConfig struct {
	Name string `mapstructure:"name"`
	ID   string `mapstructure:"id"`
}

// UpstreamConfig defines the external token-ledger connection
type UpstreamConfig struct {
	URL      string        `mapstructure:"url"`
	LedgerID string        `mapstructure:"ledger_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChainConfig defines consensus parameters
type ChainConfig struct {
	InitialDifficulty uint32        `mapstructure:"initial_difficulty"`
	MinDifficulty     uint32        `mapstructure:"min_difficulty"`
	MaxDifficulty     uint32        `mapstructure:"max_difficulty"`
	BlockTime         time.Duration `mapstructure:"block_time"`
	BlockHalving      uint64        `mapstructure:"block_halving"`
	CoinbaseRewards   uint64        `mapstructure:"coinbase_rewards"`
	TransactionLimit  int           `mapstructure:"transaction_limit"`
	AssemblyDelay     time.Duration `mapstructure:"assembly_delay"`
	AssemblyRetry     time.Duration `mapstructure:"assembly_retry"`
}

// MinerConfig defines worker search parameters
type MinerConfig struct {
	ChunkSize       uint64        `mapstructure:"chunk_size"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	CyclesPerChunk  uint64        `mapstructure:"cycles_per_chunk"`
}

// SpawnerConfig defines worker-creation economics
type SpawnerConfig struct {
	CreationAmount      uint64 `mapstructure:"creation_amount"`
	CreationCycles      uint64 `mapstructure:"creation_cycles"`
	SpawnBurnPercent    uint64 `mapstructure:"spawn_burn_percent"`
	TopupBurnPercent    uint64 `mapstructure:"topup_burn_percent"`
	TopupForwardPercent uint64 `mapstructure:"topup_forward_percent"`
}

// APIConfig defines API server settings
type APIConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Bind             string        `mapstructure:"bind"`
	StatsCache       time.Duration `mapstructure:"stats_cache"`
	CORSOrigins      []string      `mapstructure:"cors_origins"`
	WebSocketEnabled bool          `mapstructure:"websocket_enabled"`
}

// NotifyConfig defines webhook notification settings
type NotifyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DiscordURL   string `mapstructure:"discord_url"`
	TelegramBot  string `mapstructure:"telegram_bot"`
	TelegramChat string `mapstructure:"telegram_chat"`
	NodeURL      string `mapstructure:"node_url"`
}

// NewRelicConfig defines APM settings
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AppName    string `mapstructure:"app_name"`
	LicenseKey string `mapstructure:"license_key"`
}

// ProfilingConfig defines pprof server settings
type ProfilingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// LogConfig defines logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/bil-node")
	}

	// Read environment variables
	v.SetEnvPrefix("BIL_NODE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Node defaults
	v.SetDefault("node.name", "BIL Chain Node")
	v.SetDefault("node.id", "bil-ledger")

	// Upstream defaults
	v.SetDefault("upstream.url", "http://127.0.0.1:8545")
	v.SetDefault("upstream.ledger_id", "exe-ledger")
	v.SetDefault("upstream.timeout", "10s")

	// Redis defaults
	v.SetDefault("redis.url", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	// Chain defaults
	v.SetDefault("chain.initial_difficulty", 26)
	v.SetDefault("chain.min_difficulty", 24)
	v.SetDefault("chain.max_difficulty", 48)
	v.SetDefault("chain.block_time", "300s")
	v.SetDefault("chain.block_halving", 17500)
	v.SetDefault("chain.coinbase_rewards", 60000000000)
	v.SetDefault("chain.transaction_limit", 150)
	v.SetDefault("chain.assembly_delay", "1s")
	v.SetDefault("chain.assembly_retry", "20s")

	// Miner defaults
	v.SetDefault("miner.chunk_size", 1000000)
	v.SetDefault("miner.refresh_interval", "60s")
	v.SetDefault("miner.cycles_per_chunk", 400000000)

	// Spawner defaults
	v.SetDefault("spawner.creation_amount", 1500000000)
	v.SetDefault("spawner.creation_cycles", 2500000000000)
	v.SetDefault("spawner.spawn_burn_percent", 40)
	v.SetDefault("spawner.topup_burn_percent", 10)
	v.SetDefault("spawner.topup_forward_percent", 80)

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.bind", "0.0.0.0:8080")
	v.SetDefault("api.stats_cache", "10s")
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.websocket_enabled", true)

	// Notify defaults
	v.SetDefault("notify.enabled", false)

	// New Relic defaults
	v.SetDefault("newrelic.enabled", false)
	v.SetDefault("newrelic.app_name", "bil-node")

	// Profiling defaults
	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.bind", "127.0.0.1:6060")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id is required")
	}

	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}

	if c.Upstream.LedgerID == "" {
		return fmt.Errorf("upstream.ledger_id is required")
	}

	if c.Chain.MinDifficulty > c.Chain.MaxDifficulty {
		return fmt.Errorf("chain.min_difficulty must be <= max_difficulty")
	}

	if c.Chain.InitialDifficulty < c.Chain.MinDifficulty || c.Chain.InitialDifficulty > c.Chain.MaxDifficulty {
		return fmt.Errorf("chain.initial_difficulty must be within difficulty bounds")
	}

	if c.Chain.MaxDifficulty > 128 {
		return fmt.Errorf("chain.max_difficulty cannot exceed 128 leading zero bits")
	}

	if c.Chain.TransactionLimit <= 0 {
		return fmt.Errorf("chain.transaction_limit must be positive")
	}

	if c.Miner.ChunkSize == 0 {
		return fmt.Errorf("miner.chunk_size must be positive")
	}

	if c.Spawner.SpawnBurnPercent > 100 || c.Spawner.TopupBurnPercent > 100 || c.Spawner.TopupForwardPercent > 100 {
		return fmt.Errorf("spawner percentages must be <= 100")
	}

	return nil
}
