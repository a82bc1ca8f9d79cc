// Package config loads the settings consumed by the engine: a YAML
// file overlaid by environment variables, mirroring the teacher's
// config-loading shape but without a module-level singleton — §9's
// "no module-level statics" redesign note applies here too, so Load
// returns an owned *Settings rather than populating a package global.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Mode selects whether this process dispatches payouts/withdrawals
// (master) or only follows the chain and reconciles (observer).
type Mode string

const (
	ModeMaster   Mode = "master"
	ModeObserver Mode = "observer"
)

// ParameterSettings is one activation record of the `parameters[]`
// array, with one field per params.Parameter field. config.Load does
// not build a *params.Schedule from it: the caller converts these
// records (coin amounts to satoshi) into params.Parameter, which keeps
// config free of a dependency on the ledger/params layer it merely
// feeds.
type ParameterSettings struct {
	Height                   int32    `yaml:"height"`
	PoolFeePercent           float64  `yaml:"poolfeepercent"`
	StakeBonusPercent        float64  `yaml:"stakebonuspercent"`
	PayoutThreshold          float64  `yaml:"payoutthreshold"`
	MinBlocksBetweenPayments int32    `yaml:"minblocksbetweenpayments"`
	MinOutputValue           float64  `yaml:"minoutputvalue"`
	TxFeePerKb               *float64 `yaml:"txfeerate"`
	SmsgFeeRateTarget        *float64 `yaml:"smsgfeeratetarget"`
}

// WithdrawalDestinationSettings is one address:weight pair of
// poolownerwithdrawal.destinations.
type WithdrawalDestinationSettings struct {
	Address string `yaml:"address"`
	Weight  uint64 `yaml:"weight"`
}

// PoolOwnerWithdrawalSettings mirrors §6.5's poolownerwithdrawal block.
// Address is a convenience form for a single destination (weight 1);
// Destinations generalizes to the spec's weighted multi-destination
// split. Exactly one of the two should be set.
type PoolOwnerWithdrawalSettings struct {
	Frequency    int32                           `yaml:"frequency"`
	Address      string                          `yaml:"address"`
	Destinations []WithdrawalDestinationSettings `yaml:"destinations"`
	Reserve      float64                         `yaml:"reserve"`
	Threshold    float64                         `yaml:"threshold"`
}

// Settings is the full set of recognized settings from §6.5.
type Settings struct {
	Mode                 Mode                        `yaml:"mode" envconfig:"MODE"`
	PoolAddress          string                      `yaml:"pooladdress" envconfig:"POOL_ADDRESS"`
	RewardAddress        string                      `yaml:"rewardaddress" envconfig:"REWARD_ADDRESS"`
	RewardWallet         string                      `yaml:"rewardwallet" envconfig:"REWARD_WALLET"`
	StartHeight          int32                       `yaml:"startheight" envconfig:"START_HEIGHT"`
	BlockBuffer          int32                       `yaml:"blockbuffer" envconfig:"BLOCK_BUFFER"`
	MaxOutputsPerTx       int                        `yaml:"maxoutputspertx" envconfig:"MAX_OUTPUTS_PER_TX"`
	ZmqHost              string                      `yaml:"zmqhost" envconfig:"ZMQ_HOST"`
	ZmqPort              int                         `yaml:"zmqport" envconfig:"ZMQ_PORT"`
	RpcHost              string                      `yaml:"rpchost" envconfig:"RPC_HOST"`
	RpcPort              int                         `yaml:"rpcport" envconfig:"RPC_PORT"`
	RpcAuth              string                      `yaml:"rpcauth" envconfig:"RPC_AUTH"`
	RpcCookieDir         string                      `yaml:"rpccookiedir" envconfig:"RPC_COOKIE_DIR"`
	DataDir              string                      `yaml:"datadir" envconfig:"DATA_DIR"`
	HtmlHost             string                      `yaml:"htmlhost" envconfig:"HTML_HOST"`
	HtmlPort             int                         `yaml:"htmlport" envconfig:"HTML_PORT"`
	AllowCORS            bool                        `yaml:"allowcors" envconfig:"ALLOW_CORS"`
	ManagementKeySalt    string                      `yaml:"management_key_salt" envconfig:"MANAGEMENT_KEY_SALT"`
	ManagementKeyHash    string                      `yaml:"management_key_hash" envconfig:"MANAGEMENT_KEY_HASH"`
	Parameters           []ParameterSettings         `yaml:"parameters"`
	PoolOwnerWithdrawal  PoolOwnerWithdrawalSettings `yaml:"poolownerwithdrawal"`
	Debug                bool                        `yaml:"debug" envconfig:"DEBUG"`
	WriteLogFile         bool                        `yaml:"writelogfile" envconfig:"WRITE_LOG_FILE"`
	LogTime              bool                        `yaml:"logtime" envconfig:"LOG_TIME"`
}

// defaults returns a Settings populated with the spec's documented
// defaults (allowcors=true, maxoutputspertx=48) before the YAML/env
// overlay runs.
func defaults() *Settings {
	return &Settings{
		Mode:            ModeMaster,
		MaxOutputsPerTx: 48,
		AllowCORS:       true,
		BlockBuffer:     1,
	}
}

// Load reads configFile as YAML (if non-empty), then overlays
// environment variables via envconfig, then validates the fatal
// configuration errors: a mode other than master/observer, or a
// missing rpchost/rpcport. A malformed poolownerwithdrawal block is not fatal;
// it is disabled instead (see disableWithdrawalIfInvalid), matching
// the original's behaviour of carrying on in master mode with
// have_withdrawal_info = False rather than refusing to start.
func Load(configFile string) (*Settings, error) {
	cfg := defaults()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configFile, err)
		}
	}
	if err := envconfig.Process("coldstakepool", cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.disableWithdrawalIfInvalid()
	return cfg, nil
}

func (cfg *Settings) validate() error {
	if cfg.Mode != ModeMaster && cfg.Mode != ModeObserver {
		return fmt.Errorf("config: invalid mode %q", cfg.Mode)
	}
	if cfg.RpcHost == "" || cfg.RpcPort == 0 {
		return fmt.Errorf("config: rpchost/rpcport must be set")
	}
	return nil
}

// disableWithdrawalIfInvalid clears the configured withdrawal
// destinations/address whenever the poolownerwithdrawal block is
// malformed, so ResolvedDestinations (and downstream,
// ledger.WithdrawalConfig.HaveWithdrawalInfo) report withdrawals as
// disabled rather than the process refusing to start. A pool that
// never configured poolownerwithdrawal at all has no destination, so
// the function returns before any check; it only fires on a
// withdrawal block that was actually attempted and came out wrong.
func (cfg *Settings) disableWithdrawalIfInvalid() {
	w := &cfg.PoolOwnerWithdrawal
	if len(w.ResolvedDestinations()) == 0 {
		return
	}
	if w.Frequency <= cfg.BlockBuffer || w.Reserve < 0.005 || w.Threshold < 0 {
		w.Address = ""
		w.Destinations = nil
	}
}

// ResolvedDestinations folds the single-Address convenience form into
// a one-entry Destinations list, or returns Destinations unchanged if
// it was set directly.
func (w PoolOwnerWithdrawalSettings) ResolvedDestinations() []WithdrawalDestinationSettings {
	if len(w.Destinations) > 0 {
		return w.Destinations
	}
	if w.Address != "" {
		return []WithdrawalDestinationSettings{{Address: w.Address, Weight: 1}}
	}
	return nil
}
