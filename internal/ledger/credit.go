package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// ProcessPoolBlock credits a pool-won block's reward to every eligible
// participant, deducts the operator fee and stake bonus, and records
// the block and its month metric. It is only valid to call once per
// height; the caller (Scheduler) guards idempotency via current_height.
func (e *Engine) ProcessPoolBlock(ctx context.Context, h int32, reward *rpc.BlockReward, b *store.Batch, counters *store.Counters) error {
	live := e.Params.Live()

	unspent, err := e.RPC.ListColdStakeUnspent(ctx, e.PoolAddr, h-1, rpc.ListColdStakeUnspentOpts{MatureOnly: true, AllStaked: true})
	if err != nil {
		return fmt.Errorf("ledger: listcoldstakeunspent at %d: %w", h, err)
	}

	totals := make(map[string]uint64)
	var poolCoinTotal uint64
	lowValueOutputs := 0
	for _, o := range unspent {
		v := uint64(o.Satoshi())
		if v < live.MinOutputValue {
			lowValueOutputs++
			continue
		}
		totals[o.SpendAddr] += v
		poolCoinTotal += v
	}
	if lowValueOutputs > 0 {
		e.logf("ignoring %d low value outputs at height %d", lowValueOutputs, h)
	}

	blockReward := uint64(reward.Satoshi())
	poolReward := floorPercent(blockReward, live.PoolFeePercent)
	stakeBonus := floorPercent(blockReward, live.StakeBonusPercent)
	clients := blockReward - poolReward - stakeBonus

	if poolCoinTotal > 0 {
		addrs := make([]string, 0, len(totals))
		for a := range totals {
			addrs = append(addrs, a)
		}
		sort.Strings(addrs)

		clientsCoin := new(big.Int).Mul(new(big.Int).SetUint64(clients), big.NewInt(codec.COIN))
		poolCoinTotalBig := new(big.Int).SetUint64(poolCoinTotal)

		for _, addr := range addrs {
			v := totals[addr]
			addrReward := new(big.Int).Mul(clientsCoin, new(big.Int).SetUint64(v))
			addrReward.Quo(addrReward, poolCoinTotalBig)

			assignedBonus := uint64(0)
			if stakeBonus > 0 && addr == reward.KernelScript.SpendAddr {
				bonusSub := new(big.Int).Mul(new(big.Int).SetUint64(stakeBonus), big.NewInt(codec.COIN))
				addrReward = new(big.Int).Add(addrReward, bonusSub)
				assignedBonus = stakeBonus
				stakeBonus = 0
			}

			addrBytes := decodeRewardAddr(addr)
			if addrBytes == nil {
				e.logf("ledger: skipping credit to undecodable address %q at height %d", addr, h)
				continue
			}
			rec, err := loadParticipant(b, addrBytes)
			if err != nil {
				return err
			}
			rec.Accumulated = new(big.Int).Add(rec.Accumulated, addrReward)
			rec.LastStakeWeight = v
			if err := saveParticipant(b, addrBytes, rec); err != nil {
				return err
			}

			e.Debug.Credit(h, addr, poolCoinTotal, v, assignedBonus, addrReward, rec.Accumulated)
		}
	}

	if stakeBonus > 0 {
		e.logf("unassigned stake bonus %d sat at height %d (kernel address %q held no eligible output)", stakeBonus, h, reward.KernelScript.SpendAddr)
		e.Debug.UnassignedBonus(h, reward.KernelScript.SpendAddr, stakeBonus)
	}

	// Resolution of the §9 open question: unassigned bonus stays with
	// the operator. poolReward always credits the operator; stakeBonus
	// only does when it was not assigned to a participant above.
	poolRewardTotal := poolReward + stakeBonus
	poolBal, err := b.Get(store.PoolRewardKey(e.RewardAddrRaw))
	var poolBalPrev uint64
	if err == nil {
		poolBalPrev = codec.UnpackUint64(poolBal)
	} else if err != store.ErrNotFound {
		return err
	}
	if err := b.Put(store.PoolRewardKey(e.RewardAddrRaw), codec.PackUint64(poolBalPrev+poolRewardTotal)); err != nil {
		return err
	}

	blockHashBytes, err := hex.DecodeString(reward.BlockHash)
	if err != nil || len(blockHashBytes) != 32 {
		return fmt.Errorf("ledger: malformed block hash %q at height %d", reward.BlockHash, h)
	}
	var hashArr [32]byte
	copy(hashArr[:], blockHashBytes)
	if err := b.Put(store.PoolBlockKey(h), store.EncodePoolBlock(store.PoolBlockRecord{
		BlockHash:     hashArr,
		BlockReward:   blockReward,
		PoolCoinTotal: poolCoinTotal,
	})); err != nil {
		return err
	}

	counters.BlocksFound++

	blockTime := reward.BlockTime
	if blockTime == 0 {
		hdr, err := e.RPC.GetBlockHeader(ctx, reward.BlockHash)
		if err != nil {
			return fmt.Errorf("ledger: getblockheader fallback for blocktime at %d: %w", h, err)
		}
		blockTime = hdr.Time
	}
	month := time.Unix(blockTime, 0).UTC().Format("2006-01")
	if err := e.bumpMonthMetric(b, month, 1, poolCoinTotal, 0); err != nil {
		return err
	}

	var blockOutput uint64
	for i := range reward.Outputs {
		outValue := uint64(reward.Outputs[i].Satoshi())
		blockOutput += outValue
		if reward.Outputs[i].Address == e.RewardAddr && outValue != blockReward {
			e.logf("WARNING: pool reward output %s does not match block reward %s at height %d", codec.FormatSatoshi(int64(outValue)), codec.FormatSatoshi(int64(blockReward)), h)
		}
	}
	e.Debug.PoolBlock(h, blockReward, blockOutput, poolReward, poolRewardTotal, poolCoinTotal)
	return nil
}

// bumpMonthMetric adds the given deltas to the MonthMetric keyed by
// month, creating it if absent.
func (e *Engine) bumpMonthMetric(b *store.Batch, month string, blocks int32, coinSum uint64, disbursedSum uint64) error {
	key := store.MonthMetricKey(month)
	v, err := b.Get(key)
	var rec store.MonthMetricRecord
	if err == store.ErrNotFound {
		rec = store.MonthMetricRecord{PoolCoinTotalSum: big.NewInt(0)}
	} else if err != nil {
		return err
	} else {
		rec = store.DecodeMonthMetric(v)
	}
	rec.Blocks += blocks
	rec.PoolCoinTotalSum = new(big.Int).Add(rec.PoolCoinTotalSum, new(big.Int).SetUint64(coinSum))
	rec.DisbursedSum += disbursedSum
	return b.Put(key, store.EncodeMonthMetric(rec))
}
