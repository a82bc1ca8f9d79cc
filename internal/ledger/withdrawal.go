package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// WithdrawalDestination is one weighted share of an owner withdrawal.
type WithdrawalDestination struct {
	Address string
	Weight  uint64
}

// WithdrawalConfig mirrors the poolownerwithdrawal settings block: a
// weighted Destinations list (a single configured address arrives here
// as one destination of weight 1), plus the reserve/threshold/cadence
// gates of spec §4.5.4.
type WithdrawalConfig struct {
	Destinations                []WithdrawalDestination
	Reserve                     uint64 // sat
	Threshold                   uint64 // sat
	MinBlocksBetweenWithdrawals int32
	BlockBuffer                 int32
}

// HaveWithdrawalInfo reports whether enough configuration is present to
// ever attempt a withdrawal.
func (c WithdrawalConfig) HaveWithdrawalInfo() bool {
	return len(c.Destinations) > 0
}

// WithdrawalPlan is the read-phase output of PlanWithdrawal: the amount
// to send to each destination, computed from the caller-supplied pool
// reward balance and read-only RPC queries, with no send and no store
// mutation yet performed.
type WithdrawalPlan struct {
	Outputs []rpc.SendTypeToOutput
	// TotalSat is the sum of the Outputs' amounts in satoshi.
	TotalSat uint64
}

// PlanWithdrawal evaluates the owner-withdrawal eligibility gates and,
// if they pass, computes the weighted destination split. poolReward is
// the pool_reward_balance read by the caller from a store snapshot
// *before* calling this function — PlanWithdrawal itself performs only
// RPC calls (tip height, wallet balance) and arithmetic, never touching
// the store, so the caller never needs to hold the store mutex across
// these RPC round-trips. It never issues a send; the caller dispatches
// the returned plan's Outputs via sendtypeto outside any store mutex,
// then applies the result with ApplyWithdrawal in a fresh write phase.
func (e *Engine) PlanWithdrawal(ctx context.Context, h int32, cfg WithdrawalConfig, counters *store.Counters, poolReward uint64, rewardWallet string) (*WithdrawalPlan, error) {
	if !cfg.HaveWithdrawalInfo() {
		return nil, nil
	}
	if counters.LastWithdrawalRun+cfg.MinBlocksBetweenWithdrawals > h {
		return nil, nil
	}

	info, err := e.RPC.GetBlockChainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: getblockchaininfo: %w", err)
	}
	if info.Blocks >= int64(h+cfg.BlockBuffer+5) {
		e.logf("Warning: pool height is below node height, skipping withdrawal, %d, %d", h, info.Blocks)
		return nil, nil
	}

	wallet, err := e.RPC.GetWalletInfo(ctx, rewardWallet)
	if err != nil {
		return nil, fmt.Errorf("ledger: getwalletinfo: %w", err)
	}
	walletBalanceSat := uint64(rpc.ToSatoshi(wallet.Balance))
	reserveSat := cfg.Reserve

	// pool_reward_balance (and Reserve/Threshold, converted from the
	// configured whole-coin floats at config-load time, same as
	// payoutThreshold) are all plain satoshi here — no COIN division
	// needed, unlike the original's whole-coin float comparison.
	var poolRewardBalSat uint64
	if poolReward > counters.PoolFees+counters.PoolWithdrawn {
		poolRewardBalSat = poolReward - (counters.PoolFees + counters.PoolWithdrawn)
	}

	if walletBalanceSat <= reserveSat || poolRewardBalSat < reserveSat+cfg.Threshold {
		return nil, nil
	}

	withdrawAmount := poolRewardBalSat - reserveSat

	var totalWeight uint64
	seen := make(map[string]bool, len(cfg.Destinations))
	for _, d := range cfg.Destinations {
		if seen[d.Address] {
			return nil, fmt.Errorf("ledger: duplicate withdrawal destination %q", d.Address)
		}
		seen[d.Address] = true
		totalWeight += d.Weight
	}
	if totalWeight == 0 {
		return nil, fmt.Errorf("ledger: withdrawal destination weights sum to zero")
	}

	dests := append([]WithdrawalDestination(nil), cfg.Destinations...)
	sort.Slice(dests, func(i, j int) bool { return dests[i].Address < dests[j].Address })

	plan := &WithdrawalPlan{}
	var totalSat uint64
	for _, d := range dests {
		amt := new(big.Int).Mul(new(big.Int).SetUint64(withdrawAmount), new(big.Int).SetUint64(d.Weight))
		amt.Quo(amt, new(big.Int).SetUint64(totalWeight))
		amtSat := amt.Uint64()
		if amtSat == 0 {
			continue
		}
		plan.Outputs = append(plan.Outputs, rpc.SendTypeToOutput{
			Address: d.Address,
			Amount:  codec.FormatSatoshi(int64(amtSat)),
		})
		totalSat += amtSat
	}
	plan.TotalSat = totalSat
	if len(plan.Outputs) == 0 {
		return nil, nil
	}
	return plan, nil
}

// ReadPoolRewardBalance loads the current pool_reward_balance (in
// satoshi, not sub-satoshi units) for the engine's reward address from
// a read snapshot.
func ReadPoolRewardBalance(r *store.Reader, rewardAddrRaw []byte) (uint64, error) {
	v, err := r.Get(store.PoolRewardKey(rewardAddrRaw))
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return codec.UnpackUint64(v), nil
}

// ApplyWithdrawal is the write phase for a successfully dispatched
// withdrawal send: it adds feeSat to pool_fees and sets
// last_withdrawal_run to h. It never touches any ParticipantBalance —
// an owner withdrawal draws only from the pool's own reward balance.
func ApplyWithdrawal(counters *store.Counters, h int32, feeSat uint64) {
	counters.PoolFees += feeSat
	counters.LastWithdrawalRun = h
}
