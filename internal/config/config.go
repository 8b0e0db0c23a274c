package config

import (
	"errors"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Fees     FeesConfig     `mapstructure:"fees"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	AdminKey      string `mapstructure:"admin_key"`

	// Writes must carry an EIP-712 signature from a manager, the governor or the Safe.
	RequireFundSignature bool             `mapstructure:"require_fund_signature"`
	Operators            []OperatorConfig `mapstructure:"operators"`
}

type OperatorConfig struct {
	ID       string  `mapstructure:"id"`
	Name     string  `mapstructure:"name"`
	APIKey   string  `mapstructure:"api_key"`
	ReadOnly bool    `mapstructure:"read_only"`
	QPS      float64 `mapstructure:"qps"`
	Burst    int     `mapstructure:"burst"`
}

type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	AuditRetentionDays     int    `mapstructure:"audit_retention_days"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	CacheTTLSeconds       int    `mapstructure:"cache_ttl_seconds"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type ChainConfig struct {
	RPCURL              string `mapstructure:"rpc_url"`
	ChainID             int64  `mapstructure:"chain_id"`
	RegistryAddress     string `mapstructure:"registry_address"` // EIP-712 verifyingContract
	TimeoutMs           int    `mapstructure:"timeout_ms"`
	Retries             int    `mapstructure:"retries"`
	EIP1271CacheSeconds int    `mapstructure:"eip1271_cache_seconds"`
}

type FeesConfig struct {
	Unit string `mapstructure:"unit"` // fraction, percent or bps
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AuditConfig struct {
	Dir string `mapstructure:"dir"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// e.g. FUNDGATE_DATABASE_DSN
	v.SetEnvPrefix("fundgate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_only", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.require_api_key", false)
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("auth.require_fund_signature", false)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.audit_retention_days", 30)
	v.SetDefault("database.cleanup_interval_minutes", 60)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.cache_ttl_seconds", 300)
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.chain_id", 137)
	v.SetDefault("chain.registry_address", "0x0000000000000000000000000000000000000000")
	v.SetDefault("chain.timeout_ms", 5000)
	v.SetDefault("chain.retries", 1)
	v.SetDefault("chain.eip1271_cache_seconds", 60)
	v.SetDefault("fees.unit", "fraction")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("audit.dir", "./logs")
}
