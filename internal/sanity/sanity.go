// Package sanity implements startup and parameter-change validation of
// node wallet settings (C9), grounded on the original's
// runSanityChecks: the stake wallet's configured reward address must
// match the pool's (corrected via a push of fresh staking options if
// not), the reward wallet's staking must be disabled, and a configured
// owner-withdrawal set must validate and be unique.
package sanity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
)

// Logger is the narrow logging surface sanity checks report through.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Checker runs the wallet-configuration sanity checks of §4.7 against
// a node, in master mode, at start and after every parameter change.
type Checker struct {
	RPC               *rpc.Client
	StakeWallet       string
	RewardWallet      string
	RewardAddr        string
	SmsgFeeRateTarget *float64
	Log               Logger

	// Sleep is the backoff delay used by WaitForDaemon; overridable in
	// tests to avoid a 1+2+...+20 second real sleep.
	Sleep func(d time.Duration)
}

func (c *Checker) logf(format string, v ...interface{}) {
	if c.Log != nil {
		c.Log.Printf(format, v...)
	}
}

func (c *Checker) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

// WaitForDaemon retries walletsettings('stakingoptions') against the
// stake wallet up to 20 times with an increasing 1+i second backoff,
// returning a fatal error (the caller maps this to exit code 1, per
// §5's "supervisor exit code of 1 ... when the engine cannot reach the
// node at start") if the daemon is still unreachable after all
// attempts. On success it returns the decoded stakingoptions (with an
// empty RewardAddress if the wallet has none set), or nil if the
// response does not decode.
func (c *Checker) WaitForDaemon(ctx context.Context) (*stakingOptions, error) {
	var lastErr error
	for i := 0; i < 20; i++ {
		raw, err := c.RPC.WalletSettings(ctx, c.StakeWallet, "stakingoptions", nil)
		if err == nil {
			var opts stakingOptions
			if jerr := json.Unmarshal(raw, &opts); jerr != nil {
				return nil, nil
			}
			return &opts, nil
		}
		lastErr = err
		c.logf("Can't connect to daemon RPC, trying again in %d second/s.", 1+i)
		c.sleep(time.Duration(1+i) * time.Second)
	}
	c.logf("Can't connect to daemon RPC, exiting.")
	return nil, fmt.Errorf("sanity: daemon unreachable after 20 attempts: %w", lastErr)
}

type stakingOptions struct {
	StakingOptions struct {
		RewardAddress string      `json:"rewardaddress"`
		Enabled       interface{} `json:"enabled"`
	} `json:"stakingoptions"`
}

func enabledIsFalse(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return !t
	case string:
		return t == "false"
	default:
		return false
	}
}

// Run performs the full §4.7 sequence: the stake wallet's reward
// address is checked against RewardAddr and corrected by pushing fresh
// staking options if mismatched; the reward wallet's staking must be
// disabled (logged, not corrected — disabling a wallet's staking is an
// operator action, unlike pushing a reward address which is the pool's
// own setting); and, if destinations is non-empty, every address is
// validated and checked for uniqueness. opts is the stakingoptions
// already fetched by WaitForDaemon, so Run never re-issues that RPC
// call on every parameter-change invocation.
func (c *Checker) Run(ctx context.Context, opts *stakingOptions, destinations []string) error {
	if opts == nil || opts.StakingOptions.RewardAddress == "" {
		c.logf("Warning: 'stake' wallet reward address isn't set!")
		if err := c.pushStakingOptions(ctx); err != nil {
			return err
		}
	} else if opts.StakingOptions.RewardAddress != c.RewardAddr {
		c.logf("Warning: mismatched reward address!")
		if err := c.pushStakingOptions(ctx); err != nil {
			return err
		}
	}

	raw, err := c.RPC.WalletSettings(ctx, c.RewardWallet, "stakingoptions", nil)
	if err != nil {
		return fmt.Errorf("sanity: walletsettings on %q: %w", c.RewardWallet, err)
	}
	var rewardOpts stakingOptions
	if jerr := json.Unmarshal(raw, &rewardOpts); jerr != nil || !enabledIsFalse(rewardOpts.StakingOptions.Enabled) {
		c.logf("Warning: staking is not disabled on the 'reward' wallet!")
	}

	return c.validateDestinations(ctx, destinations)
}

// pushStakingOptions writes RewardAddr (and SmsgFeeRateTarget, if set)
// as the stake wallet's staking options, correcting a mismatch found
// by Run.
func (c *Checker) pushStakingOptions(ctx context.Context) error {
	settings := map[string]interface{}{"rewardaddress": c.RewardAddr}
	if c.SmsgFeeRateTarget != nil {
		settings["smsgfeeratetarget"] = *c.SmsgFeeRateTarget
	}
	if _, err := c.RPC.WalletSettings(ctx, c.StakeWallet, "stakingoptions", settings); err != nil {
		return fmt.Errorf("sanity: pushing staking options: %w", err)
	}
	return nil
}

// validateDestinations checks that every withdrawal destination
// address validates and that the set contains no duplicates,
// returning an error naming the first problem found. An empty
// destinations slice (withdrawal not configured) is not an error.
func (c *Checker) validateDestinations(ctx context.Context, destinations []string) error {
	if len(destinations) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(destinations))
	for _, addr := range destinations {
		if seen[addr] {
			return fmt.Errorf("sanity: duplicate withdrawal destination %q", addr)
		}
		seen[addr] = true
		res, err := c.RPC.ValidateAddress(ctx, addr)
		if err != nil || res == nil || !res.IsValid {
			return fmt.Errorf("sanity: invalid withdrawal destination %q", addr)
		}
	}
	return nil
}
