package engine

import (
	"context"

	"github.com/tecnovert/particl-coldstakepool/internal/ledger"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// runWithdrawal is §4.5.4's process_pool_reward_withdrawal. All of its
// eligibility gates live in ledger.PlanWithdrawal, which takes the
// caller-read pool_reward_balance as a plain value precisely so the
// store mutex is never held across the RPC calls it makes internally
// (tip height, wallet balance) — runWithdrawal itself only reads that
// one value, then dispatches the plan's send entirely outside any
// store lock, then writes the result.
func (s *Scheduler) runWithdrawal(ctx context.Context, h int32) error {
	if !s.Withdrawal.HaveWithdrawalInfo() {
		return nil
	}

	var poolReward uint64
	if err := s.Store.View(func(r *store.Reader) error {
		var err error
		poolReward, err = ledger.ReadPoolRewardBalance(r, s.Engine.RewardAddrRaw)
		return err
	}); err != nil {
		return err
	}

	plan, err := s.Engine.PlanWithdrawal(ctx, h, s.Withdrawal, s.Counters, poolReward, s.RewardWallet)
	if err != nil {
		return err
	}
	if plan == nil {
		return nil
	}

	opts := rpc.SendTypeToOpts{RingSize: 4, InputsPerSig: 64, ChangeAddress: s.Engine.RewardAddr}
	_, feeSat, err := s.Engine.RPC.SendTypeTo(ctx, s.RewardWallet, plan.Outputs, opts)
	if err != nil {
		s.logf("withdrawal dispatch failed at height %d: %v", h, err)
		return nil
	}

	return s.Store.Update(func(b *store.Batch) error {
		ledger.ApplyWithdrawal(s.Counters, h, uint64(feeSat))
		return store.SaveCounters(b, s.Counters)
	})
}
