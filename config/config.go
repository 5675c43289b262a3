package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	// Kovan deployment of the Compound DAI market
	DefaultTokenAddress  = "0x4F96Fe3b7A6Cf9725f59d353F723c1bDb64CA6Aa"
	DefaultMarketAddress = "0xF0d0EB522cfa50B716B3b1604C4F0fA6f04376AD"
	DefaultChainID       = 42
)

// Config holds the application configuration
type Config struct {
	RPCURL     string
	PrivateKey string
	ChainID    int64

	TokenAddress  string
	MarketAddress string

	ExplorerAPIURL   string
	ExplorerAPIKey   string
	ExplorerRetryMax int

	// Optional overrides, zero means ask the node
	GasLimit uint64
	GasPrice int64

	JournalPath string
	LogLevel    string
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".dai-supply")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("DAI_SUPPLY")
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("chain_id", DefaultChainID)
	v.SetDefault("token_address", DefaultTokenAddress)
	v.SetDefault("market_address", DefaultMarketAddress)
	v.SetDefault("explorer_api_url", "https://api-kovan.etherscan.io/api")
	v.SetDefault("explorer_retry_max", 2)
	v.SetDefault("log_level", "warn")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		RPCURL:           v.GetString("rpc_url"),
		PrivateKey:       v.GetString("private_key"),
		ChainID:          v.GetInt64("chain_id"),
		TokenAddress:     v.GetString("token_address"),
		MarketAddress:    v.GetString("market_address"),
		ExplorerAPIURL:   v.GetString("explorer_api_url"),
		ExplorerAPIKey:   v.GetString("explorer_api_key"),
		ExplorerRetryMax: v.GetInt("explorer_retry_max"),
		GasLimit:         v.GetUint64("gas_limit"),
		GasPrice:         v.GetInt64("gas_price"),
		JournalPath:      v.GetString("journal_path"),
		LogLevel:         v.GetString("log_level"),
	}
}

// Validate checks the settings that every command depends on. A missing private key
// is not an error here: it surfaces later as "no wallet" when connecting.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC URL not configured. Please set DAI_SUPPLY_RPC_URL or rpc_url in .dai-supply.yaml")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("invalid chain id: %d", c.ChainID)
	}
	if c.TokenAddress == "" || c.MarketAddress == "" {
		return fmt.Errorf("token and market addresses are required")
	}
	if c.ExplorerRetryMax < 0 {
		return fmt.Errorf("explorer_retry_max cannot be negative")
	}
	return nil
}
