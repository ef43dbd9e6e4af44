// Package config provides configuration management for the interest
// reconstruction service. It loads configuration from environment variables
// and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/RealToken-Community/gainorloss/internal/types"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Subgraph  SubgraphConfig
	Explorer  ExplorerConfig
	Chain     ChainConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Reserves  []ReserveConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// SubgraphConfig holds the indexed-event query service endpoints, one per
// protocol version.
type SubgraphConfig struct {
	V2URL    string
	V3URL    string
	PageSize int
}

// ExplorerConfig holds the block-explorer API configuration
type ExplorerConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
}

// ChainConfig holds the RPC endpoint used for present-moment balance reads
type ChainConfig struct {
	RPCURL string
}

// CacheConfig holds series cache configuration
type CacheConfig struct {
	SeriesTTL  time.Duration
	BalanceTTL time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// ReserveConfig binds one (token, version) pair to its deployed contract
// addresses. The debt token is the variable-rate one; the money market has
// no stable-rate borrowing.
type ReserveConfig struct {
	Token      types.Token
	Version    types.Version
	Underlying string
	AToken     string
	DebtToken  string
	Decimals   int
}

// Default reserve deployments on Gnosis Chain, overridable per field via
// RESERVE_<TOKEN>_<VERSION>_{UNDERLYING,ATOKEN,DEBT} env vars.
var defaultReserves = []ReserveConfig{
	{
		Token:      types.TokenWXDAI,
		Version:    types.VersionV2,
		Underlying: "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d",
		AToken:     "0x7349c9eaa538e118725a6130e0f8341509b9f8a0",
		DebtToken:  "0x6a7CeD66902D07066Ad08c81179d17d0fbE36829",
		Decimals:   18,
	},
	{
		Token:      types.TokenUSDC,
		Version:    types.VersionV2,
		Underlying: "0xDDAfbb505ad214D7b80b1f830fcCc89B60fb7A83",
		AToken:     "0xeD56F76E9cBC6A64b821e9c016eAFbd3db5436D1",
		DebtToken:  "0x69c731aE5f5356a779f44C355aBB685d84e5E9e6",
		Decimals:   6,
	},
	{
		Token:      types.TokenWXDAI,
		Version:    types.VersionV3,
		Underlying: "0xe91D153E0b41518A2Ce8Dd3D7944Fa863463a97d",
		AToken:     "0x0cA4f5554Dd9Da6217d62D8df2816c82bba4157b",
		DebtToken:  "0x9908801dB76acd5310e156041b0c443747dc5B47",
		Decimals:   18,
	},
	{
		Token:      types.TokenUSDC,
		Version:    types.VersionV3,
		Underlying: "0xDDAfbb505ad214D7b80b1f830fcCc89B60fb7A83",
		AToken:     "0xeD2f7C8edB4C1b02840ed475603CcCb980d14420",
		DebtToken:  "0x6A6F5aFAdeF8A0dc20E9Bf07b34f245D11e213b9",
		Decimals:   6,
	},
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "gainorloss"),
				User:           getEnv("POSTGRES_USER", "gainorloss"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "gainorloss"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 25),
			},
		},
		Subgraph: SubgraphConfig{
			V2URL:    getEnv("SUBGRAPH_V2_URL", "https://api.thegraph.com/subgraphs/name/realtoken-community/rmm-v2"),
			V3URL:    getEnv("SUBGRAPH_V3_URL", "https://api.thegraph.com/subgraphs/name/realtoken-community/rmm-v3"),
			PageSize: getEnvAsInt("SUBGRAPH_PAGE_SIZE", 1000),
		},
		Explorer: ExplorerConfig{
			BaseURL:           getEnv("EXPLORER_BASE_URL", "https://api.gnosisscan.io/api"),
			APIKey:            getEnv("EXPLORER_API_KEY", ""),
			RequestsPerSecond: getEnvAsFloat("EXPLORER_RPS", 5.0),
		},
		Chain: ChainConfig{
			RPCURL: getEnv("GNOSIS_RPC_URL", "https://rpc.gnosischain.com"),
		},
		Cache: CacheConfig{
			SeriesTTL:  getEnvAsDuration("CACHE_SERIES_TTL", 5*time.Minute),
			BalanceTTL: getEnvAsDuration("CACHE_BALANCE_TTL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	reserves, err := loadReserves()
	if err != nil {
		return nil, err
	}
	config.Reserves = reserves

	return config, nil
}

// Reserve looks up the reserve bound to a (token, version) pair.
func (c *Config) Reserve(token types.Token, version types.Version) (ReserveConfig, bool) {
	for _, r := range c.Reserves {
		if r.Token == token && r.Version == version {
			return r, true
		}
	}
	return ReserveConfig{}, false
}

// loadReserves applies env overrides to the default deployments and
// validates every address at construction time.
func loadReserves() ([]ReserveConfig, error) {
	reserves := make([]ReserveConfig, len(defaultReserves))
	copy(reserves, defaultReserves)

	for i := range reserves {
		prefix := fmt.Sprintf("RESERVE_%s_%s_",
			strings.ToUpper(string(reserves[i].Token)),
			strings.ToUpper(string(reserves[i].Version)))
		reserves[i].Underlying = getEnv(prefix+"UNDERLYING", reserves[i].Underlying)
		reserves[i].AToken = getEnv(prefix+"ATOKEN", reserves[i].AToken)
		reserves[i].DebtToken = getEnv(prefix+"DEBT", reserves[i].DebtToken)

		for field, addr := range map[string]string{
			"underlying": reserves[i].Underlying,
			"aToken":     reserves[i].AToken,
			"debtToken":  reserves[i].DebtToken,
		} {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("reserve %s/%s: invalid %s address %q",
					reserves[i].Token, reserves[i].Version, field, addr)
			}
		}
	}
	return reserves, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
