package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	customErrors "github.com/ClipFinance/arise-lib/common/errors"
	"github.com/ClipFinance/arise-lib/common/types"
	"github.com/ClipFinance/arise-lib/tracker"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "ARISE"

// Config is the resolved runtime configuration.
type Config struct {
	Chain       types.ChainConfig
	Tracker     tracker.Config
	StorePath   string
	DatabaseURL string
	LogLevel    logrus.Level
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain_id", 11155931)
	v.SetDefault("chain_name", "RISE Testnet")
	v.SetDefault("contract_address", "0x302D51b6d19a0dC8dD4893e383cC9240B51a03Ca")
	v.SetDefault("explorer_url", "https://explorer.testnet.riselabs.xyz")
	v.SetDefault("tx_type", 2)
	v.SetDefault("wait_blocks", 1)
	v.SetDefault("deploy_block", 0)
	v.SetDefault("store_path", "./arise.db")
	v.SetDefault("log_level", "info")

	d := tracker.DefaultConfig()
	v.SetDefault("tracker.poll_interval", d.PollInterval)
	v.SetDefault("tracker.min_check_spacing", d.MinCheckSpacing)
	v.SetDefault("tracker.max_retries", d.MaxRetries)
	v.SetDefault("tracker.initial_retry_delay", d.InitialRetryDelay)
	v.SetDefault("tracker.max_poll_duration", d.MaxPollDuration)
}

// Load reads .env (when present), the optional config file and ARISE_* variables.
//
// Parameters:
// - configFile: an optional path to a config file, empty to skip.
//
// Returns:
// - *Config: the resolved configuration.
// - error: ErrInvalidConfig when a required value is missing or malformed.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	rpcURL := strings.TrimSpace(v.GetString("rpc_url"))
	if rpcURL == "" {
		return nil, errors.Wrap(customErrors.ErrInvalidConfig, "ARISE_RPC_URL is not set")
	}

	level, err := logrus.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return nil, errors.Wrap(customErrors.ErrInvalidConfig, err.Error())
	}

	cfg := &Config{
		Chain: types.ChainConfig{
			Name:            v.GetString("chain_name"),
			ChainID:         v.GetUint64("chain_id"),
			RpcUrl:          rpcURL,
			ContractAddress: v.GetString("contract_address"),
			ExplorerUrl:     v.GetString("explorer_url"),
			DeployBlock:     v.GetUint64("deploy_block"),
			TxType:          v.GetUint64("tx_type"),
			WaitNBlocks:     v.GetUint64("wait_blocks"),
			PrivateKey:      v.GetString("private_key"),
		},
		Tracker: tracker.Config{
			PollInterval:      v.GetDuration("tracker.poll_interval"),
			MinCheckSpacing:   v.GetDuration("tracker.min_check_spacing"),
			MaxRetries:        v.GetInt("tracker.max_retries"),
			InitialRetryDelay: v.GetDuration("tracker.initial_retry_delay"),
			Confirmations:     v.GetUint64("wait_blocks"),
			MaxPollDuration:   v.GetDuration("tracker.max_poll_duration"),
		},
		StorePath:   v.GetString("store_path"),
		DatabaseURL: v.GetString("database_url"),
		LogLevel:    level,
	}

	if cfg.Chain.ChainID == 0 {
		return nil, errors.Wrap(customErrors.ErrInvalidConfig, "chain id must be set")
	}
	if cfg.Tracker.PollInterval <= 0 || cfg.Tracker.MaxRetries <= 0 {
		return nil, errors.Wrap(customErrors.ErrInvalidConfig, "tracker timings must be positive")
	}

	return cfg, nil
}
