// Package readapi implements the ReadAPI (C10): the snapshot query
// methods consumed by the StatusServer, grounded on the original's
// getSummary/getAddressSummary/getMetrics/rebuildMetrics
// (stakepool.py) generalized onto this store's schema. Every method
// here acquires the store mutex only for the duration of its own
// read snapshot, per §5's "each request handler acquires the store
// mutex only for the snapshot duration of its ReadAPI call."
package readapi

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/config"
	"github.com/tecnovert/particl-coldstakepool/internal/ledger"
	"github.com/tecnovert/particl-coldstakepool/internal/metrics"
	"github.com/tecnovert/particl-coldstakepool/internal/params"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// decimalCoin mirrors codec.COIN for converting RPC-reported decimal
// coin amounts (balances, unspent values) to integer satoshi.
var decimalCoin = decimal.NewFromInt(codec.COIN)

// ReadAPI answers status queries against a Store and, for the handful
// that need live node state (stake weight, node version), the shared
// read-only RPC client already held by the Engine.
type ReadAPI struct {
	Store  *store.Store
	Engine *ledger.Engine
	Mode   config.Mode

	// StakeWallet is the wallet queried for getstakinginfo in Summary
	// and VotingInfo; the reward wallet has staking disabled per
	// §4.7's sanity check, so stake weight always comes from here.
	StakeWallet  string
	RewardWallet string

	// Version is this build's own version string, reported by
	// Versions() alongside the node's getnetworkinfo.
	Version string
}

// recentBlocksLimit/recentPayoutsLimit mirror the original's getSummary
// (reverse iterator, five entries each of lastblocks/pendingpayments/
// lastpayments).
const (
	recentBlocksLimit  = 5
	recentPayoutsLimit = 5
	metricsLimit       = 12
)

// errStopIteration unwinds IteratePrefix once a bounded scan has
// collected enough entries, since the iterator itself only stops on
// error. Store.View/Reader.IteratePrefix treat any fn error as fatal to
// the whole callback, so every caller below must catch this sentinel
// before returning it further.
var errStopIteration = fmt.Errorf("readapi: stop iteration")

func stopIfErr(err error) error {
	if err == errStopIteration {
		return nil
	}
	return err
}

// RecentBlock is one entry of Summary.LastBlocks.
type RecentBlock struct {
	Height        int32
	BlockHash     string
	BlockReward   uint64
	PoolCoinTotal uint64
}

// RecentPendingPayout is one entry of Summary.PendingPayments.
type RecentPendingPayout struct {
	TxID      string
	Disbursed uint64
	Fee       uint64
}

// RecentSettledPayout is one entry of Summary.LastPayments.
type RecentSettledPayout struct {
	Height    int32
	TxID      string
	Disbursed uint64
}

// Summary is get_summary()'s result.
type Summary struct {
	PoolMode             config.Mode
	PoolHeight           int32
	BlocksFound          int32
	PoolRewardTotal      uint64
	PoolFeesTotal        uint64
	PoolWithdrawnTotal   uint64
	PoolDisbursedTotal   uint64
	LastPaymentRunHeight int32
	LastWithdrawalHeight int32
	LastBlocks           []RecentBlock
	PendingPayments      []RecentPendingPayout
	LastPayments         []RecentSettledPayout

	// StakeWeight and WalletBalance/StakedBalance come from the stake
	// wallet's getstakinginfo/getwalletinfo; zero if that RPC fails,
	// matching the original's except-and-default-to-zero behavior —
	// a down stake wallet should not fail the whole summary page.
	StakeWeight   uint64
	WalletBalance uint64
	StakedBalance uint64
}

// Summary reports the pool's overall state: counters, the five most
// recent pool-win blocks, pending payout groups, and settled payouts.
func (a *ReadAPI) Summary(ctx context.Context) (*Summary, error) {
	s := &Summary{PoolMode: a.Mode}

	err := a.Store.View(func(r *store.Reader) error {
		c, err := store.LoadCounters(r)
		if err != nil {
			return err
		}
		s.PoolHeight = c.CurrentHeight
		s.BlocksFound = c.BlocksFound
		s.PoolFeesTotal = c.PoolFees
		if a.Mode != config.ModeMaster {
			s.PoolFeesTotal = c.PoolFeesDetected
		}
		s.PoolWithdrawnTotal = c.PoolWithdrawn
		s.PoolDisbursedTotal = c.PoolDisbursed
		s.LastPaymentRunHeight = c.LastPaymentRun
		s.LastWithdrawalHeight = c.LastWithdrawalRun

		bal, err := ledger.ReadPoolRewardBalance(r, a.Engine.RewardAddrRaw)
		if err != nil {
			return err
		}
		s.PoolRewardTotal = bal

		if err := stopIfErr(r.IteratePrefix([]byte{codec.TagPoolBlock}, true, func(key, value []byte) error {
			if len(s.LastBlocks) >= recentBlocksLimit {
				return errStopIteration
			}
			height := int32(codec.UnpackUint32(key[1:5]))
			rec := store.DecodePoolBlock(value)
			s.LastBlocks = append(s.LastBlocks, RecentBlock{
				Height:        height,
				BlockHash:     hex.EncodeToString(rec.BlockHash[:]),
				BlockReward:   rec.BlockReward,
				PoolCoinTotal: rec.PoolCoinTotal,
			})
			return nil
		})); err != nil {
			return err
		}

		if err := stopIfErr(r.IteratePrefix([]byte{codec.TagPendingPayout}, true, func(key, value []byte) error {
			if len(s.PendingPayments) >= recentPayoutsLimit {
				return errStopIteration
			}
			rec := store.DecodePendingPayout(value)
			s.PendingPayments = append(s.PendingPayments, RecentPendingPayout{
				TxID:      hex.EncodeToString(key[1:]),
				Disbursed: rec.Disbursed,
				Fee:       rec.Fee,
			})
			return nil
		})); err != nil {
			return err
		}

		return stopIfErr(r.IteratePrefix([]byte{codec.TagSettledPayout}, true, func(key, value []byte) error {
			if len(s.LastPayments) >= recentPayoutsLimit {
				return errStopIteration
			}
			height := int32(codec.UnpackUint32(key[1:5]))
			s.LastPayments = append(s.LastPayments, RecentSettledPayout{
				Height:    height,
				TxID:      hex.EncodeToString(key[5:37]),
				Disbursed: store.DecodeSettledPayout(value),
			})
			return nil
		}))
	})
	if err != nil {
		return nil, err
	}

	if info, err := a.Engine.RPC.GetStakingInfo(ctx, a.StakeWallet); err == nil {
		s.StakeWeight = info.Weight
	}
	if info, err := a.Engine.RPC.GetWalletInfo(ctx, a.StakeWallet); err == nil {
		s.WalletBalance = uint64(info.WatchOnlyTotalBalance.Mul(decimalCoin).IntPart())
		s.StakedBalance = uint64(info.WatchOnlyStakedBalance.Mul(decimalCoin).IntPart())
	}
	return s, nil
}

// AddressSummary is get_address_summary(addr)'s result.
type AddressSummary struct {
	Address         string
	Known           bool
	Accumulated     *big.Int // sub-satoshi (satoshi * 10^8)
	RewardPending   uint64
	RewardPaidOut   uint64
	LastStakeWeight uint64
	CurrentTotal    uint64 // live listunspent balance at this spend address
}

// AddressSummary reports one participant's ledger state plus its live
// on-chain balance, matching the original's getAddressSummary (ledger
// lookup + listunspent RPC, both tolerant of the address never having
// been credited — "Known" is false but CurrentTotal is still reported).
func (a *ReadAPI) AddressSummary(ctx context.Context, spendAddr string) (*AddressSummary, error) {
	raw := codec.Base58CheckDecode(spendAddr)
	if raw == nil || len(raw) != 33 {
		return nil, fmt.Errorf("readapi: invalid address %q", spendAddr)
	}

	out := &AddressSummary{Address: spendAddr, Accumulated: big.NewInt(0)}
	err := a.Store.View(func(r *store.Reader) error {
		v, err := r.Get(store.ParticipantKey(raw))
		if err == store.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		rec := store.DecodeParticipant(v)
		out.Known = true
		out.Accumulated = rec.Accumulated
		out.RewardPending = rec.Pending
		out.RewardPaidOut = rec.PaidOut
		out.LastStakeWeight = rec.LastStakeWeight
		return nil
	})
	if err != nil {
		return nil, err
	}

	unspent, err := a.Engine.RPC.ListUnspent(ctx, 1, 9999999, []string{spendAddr}, true, true)
	if err == nil {
		var total int64
		for _, u := range unspent {
			total += u.Amount.Mul(decimalCoin).IntPart()
		}
		out.CurrentTotal = uint64(total)
	}
	return out, nil
}

// MonthMetric is one get_metrics() entry: a completed calendar month's
// block count and average pool-coin total per block, matching the
// original's (blocks, coin_sum // blocks) pairing.
type MonthMetric struct {
	Month            string
	Blocks           int32
	AvgPoolCoinTotal *big.Int
	DisbursedSum     uint64
}

// Metrics returns up to the last 12 months, most recent first.
func (a *ReadAPI) Metrics() ([]MonthMetric, error) {
	var out []MonthMetric
	err := a.Store.View(func(r *store.Reader) error {
		return stopIfErr(r.IteratePrefix([]byte{codec.TagMonthMetric}, true, func(key, value []byte) error {
			if len(out) >= metricsLimit {
				return errStopIteration
			}
			rec := store.DecodeMonthMetric(value)
			avg := big.NewInt(0)
			if rec.Blocks > 0 {
				avg = new(big.Int).Quo(rec.PoolCoinTotalSum, big.NewInt(int64(rec.Blocks)))
			}
			out = append(out, MonthMetric{
				Month:            string(key[1:]),
				Blocks:           rec.Blocks,
				AvgPoolCoinTotal: avg,
				DisbursedSum:     rec.DisbursedSum,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RebuildMetrics clears and reconstructs every MonthMetric, per
// rebuild_metrics()'s "clears month aggregates, reconstructs from
// PoolBlock and SettledPayout iteration." It resolves each height to a
// month via getblockhash+getblockheader, the same pair of RPC calls the
// Engine already relies on elsewhere for block metadata.
func (a *ReadAPI) RebuildMetrics(ctx context.Context) error {
	return metrics.RebuildMonthMetrics(a.Store, func(h int32) (time.Time, error) {
		hash, err := a.Engine.RPC.GetBlockHash(ctx, h)
		if err != nil {
			return time.Time{}, err
		}
		hdr, err := a.Engine.RPC.GetBlockHeader(ctx, hash)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(hdr.Time, 0), nil
	})
}

// PendingGroup is one in-flight payout dispatch: the aggregate txid
// record. A PendingPayout is keyed by txid alone and carries no
// per-address breakdown, so the participants holding a nonzero Pending
// balance are reported separately (PendingParticipant), and only when
// expandDetail is set.
type PendingGroup struct {
	TxID      string
	Disbursed uint64
	Fee       uint64
}

// PendingParticipant is one expandDetail entry of Pending's second
// return value.
type PendingParticipant struct {
	Address string
	Pending uint64
}

// Pending is get_pending(expand_detail?).
func (a *ReadAPI) Pending(expandDetail bool) ([]PendingGroup, []PendingParticipant, error) {
	var groups []PendingGroup
	var participants []PendingParticipant
	err := a.Store.View(func(r *store.Reader) error {
		if err := r.IteratePrefix([]byte{codec.TagPendingPayout}, true, func(key, value []byte) error {
			rec := store.DecodePendingPayout(value)
			groups = append(groups, PendingGroup{
				TxID:      hex.EncodeToString(key[1:]),
				Disbursed: rec.Disbursed,
				Fee:       rec.Fee,
			})
			return nil
		}); err != nil {
			return err
		}
		if !expandDetail {
			return nil
		}
		return r.IteratePrefix([]byte{codec.TagParticipant}, false, func(key, value []byte) error {
			rec := store.DecodeParticipant(value)
			if rec.Pending == 0 {
				return nil
			}
			participants = append(participants, PendingParticipant{
				Address: codec.Base58CheckEncode(append([]byte(nil), key[1:]...)),
				Pending: rec.Pending,
			})
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return groups, participants, nil
}

// Versions is get_versions()'s result: this build's own version
// alongside the node's getnetworkinfo, per §6.1's method list (an RPC
// this package is the first to actually call).
type Versions struct {
	PoolVersion     string
	NodeVersion     int64
	NodeSubVersion  string
	ProtocolVersion int64
}

func (a *ReadAPI) Versions(ctx context.Context) (*Versions, error) {
	info, err := a.Engine.RPC.GetNetworkInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &Versions{
		PoolVersion:     a.Version,
		NodeVersion:     info.Version,
		NodeSubVersion:  info.SubVersion,
		ProtocolVersion: info.ProtocolVersion,
	}, nil
}

// VotingInfo is get_voting_info()'s result: the stake wallet's current
// staking status and weight, the coin-holder signal that determines
// on-chain vote weight for a cold-staking participant's pooled coin.
type VotingInfo struct {
	StakingEnabled bool
	Staking        bool
	StakeWeight    uint64
}

func (a *ReadAPI) VotingInfo(ctx context.Context) (*VotingInfo, error) {
	info, err := a.Engine.RPC.GetStakingInfo(ctx, a.StakeWallet)
	if err != nil {
		return nil, err
	}
	return &VotingInfo{
		StakingEnabled: info.Enabled,
		Staking:        info.Staking,
		StakeWeight:    info.Weight,
	}, nil
}

// Live exposes the currently active parameter set for pages (like the
// original's page_index) that display fee/bonus/threshold alongside
// the Summary counters.
func (a *ReadAPI) Live() params.Live {
	return a.Engine.Params.Live()
}
