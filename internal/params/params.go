// Package params implements the height-indexed parameter schedule: fee
// percentage, stake bonus percentage, payout threshold, payment cadence,
// minimum output value, fee rate, and smsg fee-rate target. Parameters
// activate at a height and are never retroactive.
package params

import "sort"

// Parameter is one activation record, loaded once from configuration
// and never persisted — the store only ever records the live values it
// produced at the heights they applied.
type Parameter struct {
	Height               int32
	PoolFeePercent       float64
	StakeBonusPercent    float64
	PayoutThreshold      uint64
	MinBlocksBetweenPayments int32
	MinOutputValue       uint64
	TxFeePerKb           *float64
	SmsgFeeRateTarget    *float64
}

// Live is the parameter set currently in effect.
type Live struct {
	PoolFeePercent           float64
	StakeBonusPercent        float64
	PayoutThreshold          uint64
	MinBlocksBetweenPayments int32
	MinOutputValue           uint64
	TxFeePerKb               *float64
	SmsgFeeRateTarget        *float64
}

// Schedule activates Parameter records in height order and exposes the
// currently live set.
type Schedule struct {
	records     []Parameter
	lastApplied int // index into records of the last one applied, -1 if none
	live        Live
}

// NewSchedule sorts records by height ascending. It panics if two
// records share the same activation height — the spec treats that as
// invalid configuration, to be rejected before the engine starts.
func NewSchedule(records []Parameter) *Schedule {
	sorted := append([]Parameter(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Height < sorted[j].Height })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Height == sorted[i-1].Height {
			panic("params: duplicate activation height in schedule")
		}
	}
	return &Schedule{records: sorted, lastApplied: -1}
}

// ApplyThrough activates every record with height <= h that has not yet
// been applied, updating the live parameter set. It returns true if any
// new record activated, so the caller can re-run sanity checks only
// when the parameter set actually changed.
func (s *Schedule) ApplyThrough(h int32) bool {
	changed := false
	for s.lastApplied+1 < len(s.records) && s.records[s.lastApplied+1].Height <= h {
		s.lastApplied++
		rec := s.records[s.lastApplied]
		s.live = Live{
			PoolFeePercent:           rec.PoolFeePercent,
			StakeBonusPercent:        rec.StakeBonusPercent,
			PayoutThreshold:          rec.PayoutThreshold,
			MinBlocksBetweenPayments: rec.MinBlocksBetweenPayments,
			MinOutputValue:           rec.MinOutputValue,
			TxFeePerKb:               rec.TxFeePerKb,
			SmsgFeeRateTarget:        rec.SmsgFeeRateTarget,
		}
		changed = true
	}
	return changed
}

// Live returns the currently active parameter set. Its zero value (no
// record yet applied) has every numeric field at zero, which callers
// must treat as "parameters not yet loaded" rather than a legitimate
// 0% fee.
func (s *Schedule) Live() Live {
	return s.live
}
