// Package config loads coordinator and wallet configuration from a YAML
// file plus environment overrides, using viper with an optional .env
// pre-pass for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/synnergy-labs/rollupnet/pkg/utils"
)

// CoordinatorConfig is the unified configuration for the coordinator
// binary (C6): round timers, listen address, and the settlement store it
// appends transfer blocks to.
type CoordinatorConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	SettlementPath  string        `mapstructure:"settlement_path"`
	CollectInterval time.Duration `mapstructure:"collect_interval"`
	SignWindow      time.Duration `mapstructure:"sign_window"`
	LogLevel        string        `mapstructure:"log_level"`
}

// WalletConfig is the unified configuration for the wallet binary (C4):
// which coordinator to dial, where to persist wallet state, and the
// settlement-sync cadence.
type WalletConfig struct {
	CoordinatorURL string        `mapstructure:"coordinator_url"`
	DataDir        string        `mapstructure:"data_dir"`
	SettlementPath string        `mapstructure:"settlement_path"`
	WalletName     string        `mapstructure:"wallet_name"`
	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	LogLevel       string        `mapstructure:"log_level"`
}

func defaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		ListenAddr:      ":8787",
		SettlementPath:  "settlement.json",
		CollectInterval: 10 * time.Second,
		SignWindow:      10 * time.Second,
		LogLevel:        "info",
	}
}

func defaultWalletConfig() WalletConfig {
	return WalletConfig{
		CoordinatorURL: "ws://localhost:8787/ws",
		DataDir:        "./wallet-data",
		SettlementPath: "settlement.json",
		WalletName:     "",
		SyncInterval:   10 * time.Second,
		LogLevel:       "info",
	}
}

// loadEnvFile loads a .env file into the process environment if present;
// absence is not an error.
func loadEnvFile() {
	_ = godotenv.Load()
}

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("rollupnet")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("ROLLUPNET")
	v.AutomaticEnv()
	return v
}

// LoadCoordinatorConfig reads the coordinator's configuration from
// configFile (or the default search path if empty), then applies
// ROLLUPNET_* environment overrides. A missing config file is not an
// error; defaults apply.
func LoadCoordinatorConfig(configFile string) (*CoordinatorConfig, error) {
	loadEnvFile()
	cfg := defaultCoordinatorConfig()
	v := newViper(configFile)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "read coordinator config")
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, utils.Wrap(err, "unmarshal coordinator config")
	}
	applyCoordinatorEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadWalletConfig reads the wallet's configuration the same way
// LoadCoordinatorConfig does.
func LoadWalletConfig(configFile string) (*WalletConfig, error) {
	loadEnvFile()
	cfg := defaultWalletConfig()
	v := newViper(configFile)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "read wallet config")
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, utils.Wrap(err, "unmarshal wallet config")
	}
	applyWalletEnvOverrides(&cfg)
	return &cfg, nil
}

// applyCoordinatorEnvOverrides handles the ROLLUPNET_* variables viper's
// AutomaticEnv does not reach: AutomaticEnv only binds keys that are read
// one at a time through v.Get, not the nested struct Unmarshal path this
// loader uses, so the round timers and log level get an explicit ad hoc
// override pass instead, the way the teacher's LoadFromEnv layers
// SYNN_ENV on top of its own Unmarshal-based Load.
func applyCoordinatorEnvOverrides(cfg *CoordinatorConfig) {
	cfg.LogLevel = utils.EnvOrDefault("ROLLUPNET_LOG_LEVEL", cfg.LogLevel)
	if secs := utils.EnvOrDefaultUint64("ROLLUPNET_COLLECT_INTERVAL_SECONDS", 0); secs != 0 {
		cfg.CollectInterval = time.Duration(secs) * time.Second
	}
	if secs := utils.EnvOrDefaultUint64("ROLLUPNET_SIGN_WINDOW_SECONDS", 0); secs != 0 {
		cfg.SignWindow = time.Duration(secs) * time.Second
	}
	if port := utils.EnvOrDefaultInt("ROLLUPNET_LISTEN_PORT", 0); port != 0 {
		cfg.ListenAddr = fmt.Sprintf(":%d", port)
	}
}

// applyWalletEnvOverrides is the wallet-side counterpart of
// applyCoordinatorEnvOverrides.
func applyWalletEnvOverrides(cfg *WalletConfig) {
	cfg.LogLevel = utils.EnvOrDefault("ROLLUPNET_LOG_LEVEL", cfg.LogLevel)
	cfg.WalletName = utils.EnvOrDefault("ROLLUPNET_WALLET_NAME", cfg.WalletName)
	if secs := utils.EnvOrDefaultUint64("ROLLUPNET_SYNC_INTERVAL_SECONDS", 0); secs != 0 {
		cfg.SyncInterval = time.Duration(secs) * time.Second
	}
}
