// Package engine implements the Scheduler (C6): the per-block state
// machine that drives the ledger, the cadence-gated payout/withdrawal
// dispatch loop, and the ZMQ-driven block-follow loop, grounded on the
// original's processBlock/checkBlocks drive loop and the teacher's
// signal-handling/lifecycle idiom (cmd/stratum/main.go).
package engine

import (
	"context"
	"fmt"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/config"
	"github.com/tecnovert/particl-coldstakepool/internal/ingest"
	"github.com/tecnovert/particl-coldstakepool/internal/ledger"
	"github.com/tecnovert/particl-coldstakepool/internal/metrics"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/sanity"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// Logger is the narrow logging surface the Scheduler reports through.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Scheduler owns the live Counters cache and drives process_block/
// check_blocks against the ledger Engine and the Store. Exactly one
// Scheduler should run against a given Store at a time; it is not
// itself safe for concurrent ProcessBlock calls (the original's single
// ingest-loop thread model, per §5).
type Scheduler struct {
	Store        *store.Store
	Engine       *ledger.Engine
	Metrics      *metrics.PoolMetrics
	Sanity       *sanity.Checker
	Mode         config.Mode
	RewardWallet string
	BlockBuffer  int32
	MaxOutputsPerTx int
	Withdrawal   ledger.WithdrawalConfig
	WithdrawalDestAddrs []string // for sanity.Checker.Run's uniqueness/validate pass
	ZMQ          *ingest.HashBlockNotifier
	Log          Logger

	Counters *store.Counters
}

func (s *Scheduler) logf(format string, v ...interface{}) {
	if s.Log != nil {
		s.Log.Printf(format, v...)
	}
}

// Open loads the persisted Counters into the Scheduler's in-memory
// cache, the one piece of mutable state ProcessBlock carries across
// calls outside the store itself.
func (s *Scheduler) Open() error {
	return s.Store.View(func(r *store.Reader) error {
		c, err := store.LoadCounters(r)
		if err != nil {
			return err
		}
		s.Counters = c
		return nil
	})
}

// ProcessBlock is idempotent: a height at or below the current pool
// height is a no-op. On success it credits/reconciles height h,
// dispatches any cadence-due payout and withdrawal sub-batches, and
// advances current_height. Per §4.5.5, a failure inside the outer
// batch aborts without writing anything for h — the caller retries on
// its next tick; a failed payout/withdrawal RPC send still leaves
// whatever earlier chunks succeeded recorded in their own sub-batches.
func (s *Scheduler) ProcessBlock(ctx context.Context, h int32) error {
	if s.Counters.CurrentHeight >= h {
		return nil
	}

	if s.Engine.Params.ApplyThrough(h) && s.Mode == config.ModeMaster && s.Sanity != nil {
		if err := s.runSanity(ctx); err != nil {
			s.logf("sanity check failed at height %d: %v", h, err)
		}
	}

	reward, err := s.Engine.RPC.GetBlockReward(ctx, h)
	if err != nil {
		return fmt.Errorf("engine: getblockreward at %d: %w", h, err)
	}

	err = s.Store.Update(func(b *store.Batch) error {
		if err := s.Engine.FindPayments(ctx, h, reward.CoinstakeTxn, b, s.Counters); err != nil {
			return err
		}
		if isPoolWin(reward, s.Engine.RewardAddr) {
			if err := s.Engine.ProcessPoolBlock(ctx, h, reward, b, s.Counters); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("engine: outer batch at %d: %w", h, err)
	}

	if s.Mode == config.ModeMaster {
		live := s.Engine.Params.Live()
		if h-s.Counters.LastPaymentRun >= live.MinBlocksBetweenPayments {
			if err := s.runPayments(ctx, h); err != nil {
				s.logf("payment dispatch failed at height %d: %v", h, err)
			}
		}
		if err := s.runWithdrawal(ctx, h); err != nil {
			s.logf("withdrawal dispatch failed at height %d: %v", h, err)
		}
	}

	if err := s.Store.Update(func(b *store.Batch) error {
		s.Counters.CurrentHeight = h
		return store.SaveCounters(b, s.Counters)
	}); err != nil {
		return fmt.Errorf("engine: committing current_height at %d: %w", h, err)
	}

	if s.Metrics != nil {
		s.syncMetrics()
	}
	return nil
}

// isPoolWin reports whether reward's outputs pay the pool reward
// address at all, per §4.5.1: "called only if one of the block's
// outputs pays the pool reward address ... (a mismatch [in amount] is
// logged as a warning but processing proceeds)."
func isPoolWin(reward *rpc.BlockReward, rewardAddr string) bool {
	for i := range reward.Outputs {
		if reward.Outputs[i].Address == rewardAddr {
			return true
		}
	}
	return false
}

func (s *Scheduler) runSanity(ctx context.Context) error {
	opts, err := s.Sanity.WaitForDaemon(ctx)
	if err != nil {
		return err
	}
	return s.Sanity.Run(ctx, opts, s.WithdrawalDestAddrs)
}

// tipNotAhead reports whether the node's tip height is below pool
// height h + BlockBuffer + 5, the guard §4.5.3 and
// §4.5.4 both share before dispatching any send.
func (s *Scheduler) tipNotAhead(ctx context.Context, h int32) (bool, error) {
	info, err := s.Engine.RPC.GetBlockChainInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.Blocks < int64(h+s.BlockBuffer+5), nil
}

// syncMetrics pushes the current Counters/live-parameter snapshot into
// the Prometheus gauges. It takes a quick read-only pass to learn the
// pool reward balance and participant count, which Counters itself
// does not carry.
func (s *Scheduler) syncMetrics() {
	var poolRewardBal uint64
	var participantCount int
	_ = s.Store.View(func(r *store.Reader) error {
		bal, err := ledger.ReadPoolRewardBalance(r, s.Engine.RewardAddrRaw)
		if err == nil {
			poolRewardBal = bal
		}
		return r.IteratePrefix([]byte{codec.TagParticipant}, false, func(_, _ []byte) error {
			participantCount++
			return nil
		})
	})
	s.Metrics.SyncGauges(s.Counters.CurrentHeight, s.Counters.LastPaymentRun, s.Counters.LastWithdrawalRun, poolRewardBal, participantCount)
}

// CheckBlocks does one non-blocking poll of the ZMQ "hashblock" topic
// and, if a notification is pending, advances ProcessBlock until the
// node's tip is within BlockBuffer of the pool height, stopping early
// if limitBlocks (when > 0) is exhausted or isRunning turns false
// mid-loop — matching the original's checkBlocks(limit_blocks). A
// limitBlocks of zero or less means unlimited.
func (s *Scheduler) CheckBlocks(ctx context.Context, limitBlocks int, isRunning func() bool) error {
	ok, err := s.ZMQ.Poll()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	info, err := s.Engine.RPC.GetBlockChainInfo(ctx)
	if err != nil {
		return err
	}
	remaining := limitBlocks
	for info.Blocks-int64(s.BlockBuffer) > int64(s.Counters.CurrentHeight) && isRunning() {
		if err := s.ProcessBlock(ctx, s.Counters.CurrentHeight+1); err != nil {
			return err
		}
		if limitBlocks <= 0 {
			continue
		}
		remaining--
		if remaining == 0 {
			break
		}
	}
	return nil
}
