package metrics

import (
	"math/big"
	"time"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// RebuildMonthMetrics clears every MonthMetric and reconstructs it from
// scratch by iterating every PoolBlock and SettledPayout record, per
// spec's rebuild_metrics(): "clears month aggregates, reconstructs from
// PoolBlock and SettledPayout iteration." PoolBlock carries no
// timestamp of its own in the store schema, so the caller supplies
// blockTime to resolve each height to a "YYYY-MM" bucket — the engine
// already knows this from reward.blocktime (with the
// getblockheader(...).time fallback) at credit time, so rebuilding
// re-derives it the same way via the blockTime lookup function.
func RebuildMonthMetrics(s *store.Store, blockTime func(height int32) (time.Time, error)) error {
	type accum struct {
		blocks       int32
		poolCoinSum  *big.Int
		disbursedSum uint64
	}
	months := make(map[string]*accum)

	err := s.View(func(r *store.Reader) error {
		return r.IteratePrefix([]byte{codec.TagPoolBlock}, false, func(key, value []byte) error {
			height := int32(codec.UnpackUint32(key[1:5]))
			rec := store.DecodePoolBlock(value)
			t, err := blockTime(height)
			if err != nil {
				return err
			}
			ym := t.UTC().Format("2006-01")
			a, ok := months[ym]
			if !ok {
				a = &accum{poolCoinSum: big.NewInt(0)}
				months[ym] = a
			}
			a.blocks++
			a.poolCoinSum.Add(a.poolCoinSum, new(big.Int).SetUint64(rec.PoolCoinTotal))
			return nil
		})
	})
	if err != nil {
		return err
	}

	err = s.View(func(r *store.Reader) error {
		return r.IteratePrefix([]byte{codec.TagSettledPayout}, false, func(key, value []byte) error {
			height := int32(codec.UnpackUint32(key[1:5]))
			disbursed := store.DecodeSettledPayout(value)
			t, err := blockTime(height)
			if err != nil {
				return err
			}
			ym := t.UTC().Format("2006-01")
			a, ok := months[ym]
			if !ok {
				a = &accum{poolCoinSum: big.NewInt(0)}
				months[ym] = a
			}
			a.disbursedSum += disbursed
			return nil
		})
	})
	if err != nil {
		return err
	}

	// Collect the previously recorded months under their own read
	// snapshot, before opening the write batch — the store mutex is
	// not reentrant, so this must not be nested inside s.Update below.
	var staleKeys [][]byte
	if err := s.View(func(r *store.Reader) error {
		return r.IteratePrefix([]byte{codec.TagMonthMetric}, false, func(key, _ []byte) error {
			staleKeys = append(staleKeys, append([]byte(nil), key...))
			return nil
		})
	}); err != nil {
		return err
	}

	return s.Update(func(b *store.Batch) error {
		// Clear every previously recorded month before writing the
		// freshly reconstructed set, so a month that no longer has any
		// blocks (pathological, but possible after a schema migration)
		// does not linger with stale data.
		for _, k := range staleKeys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		for ym, a := range months {
			rec := store.MonthMetricRecord{
				Blocks:           a.blocks,
				PoolCoinTotalSum: a.poolCoinSum,
				DisbursedSum:     a.disbursedSum,
			}
			if err := b.Put(store.MonthMetricKey(ym), store.EncodeMonthMetric(rec)); err != nil {
				return err
			}
		}
		return nil
	})
}
