package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime knob for the bot. Values come from environment
// variables (preferred in production) or an optional config.yaml in the
// working directory.
type Config struct {
	Env string `mapstructure:"ENV"`

	DiscordToken string `mapstructure:"DISCORD_TOKEN"`
	AdminUserID  int64  `mapstructure:"ADMIN_USER_ID"`
	// HouseUserID is the ledger account all wagers are escrowed into. It is
	// normally the bot's own Discord user ID.
	HouseUserID int64 `mapstructure:"HOUSE_USER_ID"`

	DatabasePath string `mapstructure:"DATABASE_PATH"`

	SolanaRPCURL string `mapstructure:"SOLANA_RPC_URL"`
	// HouseWalletSecret accepts base58, a JSON byte array, or base64.
	HouseWalletSecret string  `mapstructure:"HOUSE_WALLET_SECRET"`
	QCPerSOL          float64 `mapstructure:"QC_PER_SOL"`
	HouseEdge         float64 `mapstructure:"HOUSE_EDGE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	PriceFeedURL string `mapstructure:"PRICE_FEED_URL"`

	DepositPollInterval  time.Duration `mapstructure:"DEPOSIT_POLL_INTERVAL"`
	SweepInterval        time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepConcurrency     int           `mapstructure:"SWEEP_CONCURRENCY"`
	LotteryTickInterval  time.Duration `mapstructure:"LOTTERY_TICK_INTERVAL"`
	AirdropTickInterval  time.Duration `mapstructure:"AIRDROP_TICK_INTERVAL"`
	BattleTickInterval   time.Duration `mapstructure:"BATTLE_TICK_INTERVAL"`
	LoanSweepInterval    time.Duration `mapstructure:"LOAN_SWEEP_INTERVAL"`
	PriceRefreshInterval time.Duration `mapstructure:"PRICE_REFRESH_INTERVAL"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_PATH", "quantacoin.db")
	v.SetDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	v.SetDefault("QC_PER_SOL", 1000.0) // 1 QC = 0.001 SOL
	v.SetDefault("HOUSE_EDGE", 0.01)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("PRICE_FEED_URL", "https://api.coingecko.com/api/v3/simple/price")
	v.SetDefault("DEPOSIT_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("SWEEP_INTERVAL", 60*time.Second)
	v.SetDefault("SWEEP_CONCURRENCY", 4)
	v.SetDefault("LOTTERY_TICK_INTERVAL", 5*time.Second)
	v.SetDefault("AIRDROP_TICK_INTERVAL", 3*time.Second)
	v.SetDefault("BATTLE_TICK_INTERVAL", 5*time.Second)
	v.SetDefault("LOAN_SWEEP_INTERVAL", 60*time.Second)
	v.SetDefault("PRICE_REFRESH_INTERVAL", 60*time.Second)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// viper.AutomaticEnv does not populate Unmarshal for keys it has never
	// seen, so bind the ones we rely on explicitly.
	for _, key := range []string{
		"ENV", "DISCORD_TOKEN", "ADMIN_USER_ID", "HOUSE_USER_ID",
		"DATABASE_PATH", "SOLANA_RPC_URL", "HOUSE_WALLET_SECRET",
		"QC_PER_SOL", "HOUSE_EDGE", "REDIS_ADDR", "REDIS_PASSWORD",
		"HTTP_ADDR", "JWT_SECRET", "PRICE_FEED_URL",
		"DEPOSIT_POLL_INTERVAL", "SWEEP_INTERVAL", "SWEEP_CONCURRENCY",
		"LOTTERY_TICK_INTERVAL", "AIRDROP_TICK_INTERVAL", "BATTLE_TICK_INTERVAL",
		"LOAN_SWEEP_INTERVAL", "PRICE_REFRESH_INTERVAL",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.HouseUserID == 0 {
		return nil, fmt.Errorf("HOUSE_USER_ID is required")
	}

	return &cfg, nil
}
