package store

import (
	"math/big"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
)

// Singleton counter keys under the 'd' tag.
var (
	keyCurrentHeight     = codec.Key(codec.TagPoolCounters, []byte("current_height"))
	keyDBVersion         = codec.Key(codec.TagPoolCounters, []byte("db_version"))
	keyBlocksFound       = codec.Key(codec.TagPoolCounters, []byte("blocks_found"))
	keyLastPaymentRun    = codec.Key(codec.TagPoolCounters, []byte("last_payment_run"))
	keyLastWithdrawalRun = codec.Key(codec.TagPoolCounters, []byte("last_withdrawal_run"))
	keyPoolAddr          = codec.Key(codec.TagPoolCounters, []byte("pool_addr"))
	keyRewardAddr        = codec.Key(codec.TagPoolCounters, []byte("reward_addr"))
	keyPoolFees          = codec.Key(codec.TagPoolCounters, []byte("pool_fees"))
	keyPoolFeesDetected  = codec.Key(codec.TagPoolCounters, []byte("pool_fees_detected"))
	keyPoolWithdrawn     = codec.Key(codec.TagPoolCounters, []byte("pool_withdrawn"))
	keyPoolDisbursed     = codec.Key(codec.TagPoolCounters, []byte("pool_disbursed"))
)

// ParticipantRecord is the on-disk encoding of a ParticipantBalance:
// u128(16) accumulated || u64(8) pending || u64(8) paid_out || u64(8) last_stake_weight.
type ParticipantRecord struct {
	Accumulated     *big.Int
	Pending         uint64
	PaidOut         uint64
	LastStakeWeight uint64
}

func EncodeParticipant(r ParticipantRecord) []byte {
	buf := make([]byte, 40)
	r.Accumulated.FillBytes(buf[0:16])
	copy(buf[16:24], codec.PackUint64(r.Pending))
	copy(buf[24:32], codec.PackUint64(r.PaidOut))
	copy(buf[32:40], codec.PackUint64(r.LastStakeWeight))
	return buf
}

func DecodeParticipant(b []byte) ParticipantRecord {
	return ParticipantRecord{
		Accumulated:     new(big.Int).SetBytes(b[0:16]),
		Pending:         codec.UnpackUint64(b[16:24]),
		PaidOut:         codec.UnpackUint64(b[24:32]),
		LastStakeWeight: codec.UnpackUint64(b[32:40]),
	}
}

// PoolBlockRecord is the on-disk encoding of a PoolBlock:
// hash(32) || u64(8) block_reward || u64(8) pool_coin_total.
type PoolBlockRecord struct {
	BlockHash     [32]byte
	BlockReward   uint64
	PoolCoinTotal uint64
}

func EncodePoolBlock(r PoolBlockRecord) []byte {
	buf := make([]byte, 48)
	copy(buf[0:32], r.BlockHash[:])
	copy(buf[32:40], codec.PackUint64(r.BlockReward))
	copy(buf[40:48], codec.PackUint64(r.PoolCoinTotal))
	return buf
}

func DecodePoolBlock(b []byte) PoolBlockRecord {
	var r PoolBlockRecord
	copy(r.BlockHash[:], b[0:32])
	r.BlockReward = codec.UnpackUint64(b[32:40])
	r.PoolCoinTotal = codec.UnpackUint64(b[40:48])
	return r
}

// PendingPayoutRecord is the on-disk encoding of a PendingPayout,
// keyed by txid alone: u64(8) disbursed || u64(8) fee.
type PendingPayoutRecord struct {
	Disbursed uint64
	Fee       uint64
}

func EncodePendingPayout(r PendingPayoutRecord) []byte {
	buf := make([]byte, 16)
	copy(buf[0:8], codec.PackUint64(r.Disbursed))
	copy(buf[8:16], codec.PackUint64(r.Fee))
	return buf
}

func DecodePendingPayout(b []byte) PendingPayoutRecord {
	return PendingPayoutRecord{
		Disbursed: codec.UnpackUint64(b[0:8]),
		Fee:       codec.UnpackUint64(b[8:16]),
	}
}

// EncodeSettledPayout encodes a SettledPayout value: u64 disbursed.
func EncodeSettledPayout(disbursed uint64) []byte {
	return codec.PackUint64(disbursed)
}

// DecodeSettledPayout decodes a SettledPayout value.
func DecodeSettledPayout(b []byte) uint64 {
	return codec.UnpackUint64(b)
}

// MonthMetricRecord is the on-disk encoding of a MonthMetric:
// i32(4) blocks || u128(16) pool_coin_total_sum || u64(8) disbursed_sum.
type MonthMetricRecord struct {
	Blocks            int32
	PoolCoinTotalSum  *big.Int
	DisbursedSum      uint64
}

func EncodeMonthMetric(r MonthMetricRecord) []byte {
	buf := make([]byte, 28)
	copy(buf[0:4], codec.PackUint32(uint32(r.Blocks)))
	r.PoolCoinTotalSum.FillBytes(buf[4:20])
	copy(buf[20:28], codec.PackUint64(r.DisbursedSum))
	return buf
}

func DecodeMonthMetric(b []byte) MonthMetricRecord {
	return MonthMetricRecord{
		Blocks:           int32(codec.UnpackUint32(b[0:4])),
		PoolCoinTotalSum: new(big.Int).SetBytes(b[4:20]),
		DisbursedSum:     codec.UnpackUint64(b[20:28]),
	}
}

// Key helpers for address/height/month-indexed records.

func ParticipantKey(spendAddr []byte) []byte {
	return codec.Key(codec.TagParticipant, spendAddr)
}

func PoolRewardKey(rewardAddr []byte) []byte {
	return codec.Key(codec.TagPoolReward, rewardAddr)
}

func PoolBlockKey(height int32) []byte {
	return codec.HeightKey(codec.TagPoolBlock, uint32(height))
}

func PendingPayoutKey(txid [32]byte) []byte {
	return codec.Key(codec.TagPendingPayout, txid[:])
}

func SettledPayoutKey(height int32, txid [32]byte) []byte {
	return codec.Key(codec.TagSettledPayout, codec.PackUint32(uint32(height)), txid[:])
}

// SettledPayoutHeightPrefix returns the key prefix covering every
// SettledPayout recorded at height, for prefix iteration.
func SettledPayoutHeightPrefix(height int32) []byte {
	return codec.Key(codec.TagSettledPayout, codec.PackUint32(uint32(height)))
}

func MonthMetricKey(yyyymm string) []byte {
	return codec.AddressKey(codec.TagMonthMetric, yyyymm)
}
