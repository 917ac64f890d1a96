// Package config loads the simulator's run configuration via viper,
// the way SahilParikh03-Caesar-Trade loads its runtime configuration:
// a typed struct populated from YAML/env, with defaults set before
// unmarshaling so a bare environment still produces a runnable
// config.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the simulator's run configuration: kernel pacing,
// latency parameters, the traded symbol, and the gateway's listen
// address.
type Config struct {
	Symbol          string `mapstructure:"symbol"`
	TickMs          int64  `mapstructure:"tick_ms"`
	MarketDataDepth int    `mapstructure:"market_data_depth"`
	PipelineDelayNs int64  `mapstructure:"pipeline_delay_ns"`
	Seed            int64  `mapstructure:"seed"`

	RPCUpMs       int64 `mapstructure:"rpc_up_ms"`
	RPCDownMs     int64 `mapstructure:"rpc_down_ms"`
	ComputeMs     int64 `mapstructure:"compute_ms"`
	DownJitterMs  int64 `mapstructure:"down_jitter_ms"`

	ListenAddr string `mapstructure:"listen_addr"`
	CORSOrigin string `mapstructure:"cors_origin"`
	AuthToken  string `mapstructure:"auth_token"`

	SQLiteLogPath string `mapstructure:"sqlite_log_path"`
}

// Default returns the configuration with spec-documented defaults
// applied (tickMs=200, rpcUpMs=200, rpcDownMs=200, computeMs=300,
// downJitterMs=0, market data depth 10).
func Default() Config {
	return Config{
		Symbol:          "SIM",
		TickMs:          200,
		MarketDataDepth: 10,
		PipelineDelayNs: 0,
		Seed:            1,
		RPCUpMs:         200,
		RPCDownMs:       200,
		ComputeMs:       300,
		DownJitterMs:    0,
		ListenAddr:      ":8080",
		CORSOrigin:      "*",
		SQLiteLogPath:   "marketsim.db",
	}
}

// Load reads configuration from an optional file at path (if
// non-empty) and from environment variables prefixed MARKETSIM_,
// layered on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix("marketsim")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("symbol", cfg.Symbol)
	v.SetDefault("tick_ms", cfg.TickMs)
	v.SetDefault("market_data_depth", cfg.MarketDataDepth)
	v.SetDefault("pipeline_delay_ns", cfg.PipelineDelayNs)
	v.SetDefault("seed", cfg.Seed)
	v.SetDefault("rpc_up_ms", cfg.RPCUpMs)
	v.SetDefault("rpc_down_ms", cfg.RPCDownMs)
	v.SetDefault("compute_ms", cfg.ComputeMs)
	v.SetDefault("down_jitter_ms", cfg.DownJitterMs)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("cors_origin", cfg.CORSOrigin)
	v.SetDefault("auth_token", cfg.AuthToken)
	v.SetDefault("sqlite_log_path", cfg.SQLiteLogPath)
}
