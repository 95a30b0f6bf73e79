// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Detection DetectionConfig `mapstructure:"detection"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds chain RPC configuration.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// PoolConfig is one statically configured AMM pool: the pool catalog
// the core reads pair metadata from but never discovers itself.
type PoolConfig struct {
	PairAddress   string `mapstructure:"pair_address"`
	DexName       string `mapstructure:"dex_name"`
	TokenASymbol  string `mapstructure:"token_a_symbol"`
	TokenAAddress string `mapstructure:"token_a_address"`
	TokenADecimals uint8 `mapstructure:"token_a_decimals"`
	TokenBSymbol  string `mapstructure:"token_b_symbol"`
	TokenBAddress string `mapstructure:"token_b_address"`
	TokenBDecimals uint8 `mapstructure:"token_b_decimals"`
	SwapFeeBps    int    `mapstructure:"swap_fee_bps"`
}

// DetectionConfig holds every tunable named in the configuration
// surface: profit gates, search bounds, cache and cooldown windows,
// and the static pool catalog.
type DetectionConfig struct {
	MinProfitPercent          float64      `mapstructure:"min_profit_percent"`
	MinProfitUSD              float64      `mapstructure:"min_profit_usd"`
	EstimatedGasLimit         uint64       `mapstructure:"estimated_gas_limit"`
	FlashLoanFee              float64      `mapstructure:"flash_loan_fee"`
	MinTradeSizeUSD           float64      `mapstructure:"min_trade_size_usd"`
	MaxTradeSizeUSD           float64      `mapstructure:"max_trade_size_usd"`
	MinLiquidityUSD           float64      `mapstructure:"min_liquidity_usd"`
	MinLiquidityTriangularUSD float64      `mapstructure:"min_liquidity_triangular_usd"`
	BaseTokens                []string     `mapstructure:"base_tokens"`
	DebounceMs                int          `mapstructure:"debounce_ms"`
	CorrelationThreshold      float64      `mapstructure:"correlation_threshold"`
	CorrelationHistoryLength  int          `mapstructure:"correlation_history_length"`
	CorrelationUpdateInterval int          `mapstructure:"correlation_update_interval_ms"`
	GasCacheTTLMs             int          `mapstructure:"gas_cache_ttl_ms"`
	CooldownMs                int          `mapstructure:"cooldown_ms"`
	TriangularEnabled         bool         `mapstructure:"triangular_enabled"`
	NativeGasTokenSymbol      string       `mapstructure:"native_gas_token_symbol"`
	StaticGasPriceGwei        float64      `mapstructure:"static_gas_price_gwei"`
	Pools                     []PoolConfig `mapstructure:"pools"`
}

// NativeUSDFallback is the stable table of native-token fallback USD
// prices, used when a pool-implied USD price cannot be derived (e.g.
// no liquid pool against a stablecoin is configured for that token).
var NativeUSDFallback = map[string]decimal.Decimal{
	"WBNB":  decimal.NewFromFloat(600),
	"WETH":  decimal.NewFromFloat(3500),
	"WMATIC": decimal.NewFromFloat(0.5),
	"WAVAX": decimal.NewFromFloat(35),
}

// DebounceWindow returns DebounceMs as a time.Duration.
func (c *DetectionConfig) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// CooldownWindow returns CooldownMs as a time.Duration.
func (c *DetectionConfig) CooldownWindow() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

// GasCacheTTL returns GasCacheTTLMs as a time.Duration.
func (c *DetectionConfig) GasCacheTTL() time.Duration {
	return time.Duration(c.GasCacheTTLMs) * time.Millisecond
}

// CorrelationUpdatePeriod returns CorrelationUpdateInterval as a time.Duration.
func (c *DetectionConfig) CorrelationUpdatePeriod() time.Duration {
	return time.Duration(c.CorrelationUpdateInterval) * time.Millisecond
}

// MinProfitPercentDecimal returns MinProfitPercent as a decimal.Decimal.
func (c *DetectionConfig) MinProfitPercentDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitPercent)
}

// MinProfitUSDDecimal returns MinProfitUSD as a decimal.Decimal.
func (c *DetectionConfig) MinProfitUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitUSD)
}

// StaticGasPriceWei returns StaticGasPriceGwei converted to wei, the
// gas feed's fallback price when the RPC call fails.
func (c *DetectionConfig) StaticGasPriceWei() *big.Int {
	gwei := decimal.NewFromFloat(c.StaticGasPriceGwei)
	wei := gwei.Mul(decimal.NewFromInt(1e9))
	return wei.BigInt()
}

// FlashLoanFeeDecimal returns FlashLoanFee as a decimal.Decimal.
func (c *DetectionConfig) FlashLoanFeeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FlashLoanFee)
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars and defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("ethereum.websocket_url", "ARB_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	v.BindEnv("detection.min_profit_percent", "ARB_MIN_PROFIT_PERCENT")
	v.BindEnv("detection.min_profit_usd", "ARB_MIN_PROFIT_USD")
	v.BindEnv("detection.base_tokens", "ARB_BASE_TOKENS")
	v.BindEnv("detection.triangular_enabled", "ARB_TRIANGULAR_ENABLED")

	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbdetectd")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.chain_id", 56)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")

	v.SetDefault("detection.min_profit_percent", 0.5)
	v.SetDefault("detection.min_profit_usd", 1.0)
	v.SetDefault("detection.estimated_gas_limit", 350000)
	v.SetDefault("detection.flash_loan_fee", 0.0025)
	v.SetDefault("detection.min_trade_size_usd", 10)
	v.SetDefault("detection.max_trade_size_usd", 5000)
	v.SetDefault("detection.min_liquidity_usd", 1000)
	v.SetDefault("detection.min_liquidity_triangular_usd", 5000)
	v.SetDefault("detection.base_tokens", []string{"WBNB", "USDT", "BUSD", "USDC", "ETH", "BTCB"})
	v.SetDefault("detection.debounce_ms", 100)
	v.SetDefault("detection.correlation_threshold", 0.7)
	v.SetDefault("detection.correlation_history_length", 100)
	v.SetDefault("detection.correlation_update_interval_ms", 60000)
	v.SetDefault("detection.gas_cache_ttl_ms", 2000)
	v.SetDefault("detection.cooldown_ms", 30000)
	v.SetDefault("detection.triangular_enabled", true)
	v.SetDefault("detection.native_gas_token_symbol", "WBNB")
	v.SetDefault("detection.static_gas_price_gwei", 5)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arbdetectd")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration. Misconfiguration (missing RPC
// URLs, empty base-token list, invalid pool fee range or addresses,
// negative or inverted bounds) fails initialization with a descriptive
// error rather than starting in a degraded state. Base-token symbols
// are not checked against the pool catalog; the detection orchestrator
// skips symbols that no configured pool uses.
func (c *Config) Validate() error {
	if c.Ethereum.WebSocketURL == "" {
		return fmt.Errorf("ethereum.websocket_url is required")
	}
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if len(c.Detection.BaseTokens) == 0 {
		return fmt.Errorf("detection.base_tokens cannot be empty")
	}
	if c.Detection.MinTradeSizeUSD < 0 || c.Detection.MaxTradeSizeUSD < 0 {
		return fmt.Errorf("detection trade size bounds must be non-negative")
	}
	if c.Detection.MinTradeSizeUSD > c.Detection.MaxTradeSizeUSD {
		return fmt.Errorf("detection.min_trade_size_usd exceeds max_trade_size_usd")
	}
	if c.Detection.FlashLoanFee < 0 {
		return fmt.Errorf("detection.flash_loan_fee must be non-negative")
	}
	for _, p := range c.Detection.Pools {
		if !common.IsHexAddress(p.PairAddress) {
			return fmt.Errorf("invalid pool pair_address: %s", p.PairAddress)
		}
		if !common.IsHexAddress(p.TokenAAddress) || !common.IsHexAddress(p.TokenBAddress) {
			return fmt.Errorf("invalid pool token address for pair %s", p.PairAddress)
		}
		if p.SwapFeeBps < 0 || p.SwapFeeBps > 100 {
			return fmt.Errorf("pool %s swap_fee_bps out of [0,100] range", p.PairAddress)
		}
	}
	return nil
}
