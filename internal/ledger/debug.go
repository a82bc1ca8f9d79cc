package ledger

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
)

// DebugSink receives the per-block accounting trail the original pool
// wrote as a set of CSV files under a debug directory — kept here as an
// optional, pluggable sink rather than always-on disk I/O, but matching
// the original's record shapes so the same offline tooling can read it.
type DebugSink interface {
	Credit(height int32, address string, poolCoinTotal, addrValue, stakeBonusAssigned uint64, addrReward, addrTotal *big.Int)
	UnassignedBonus(height int32, kernelAddr string, bonusSat uint64)
	PoolBlock(height int32, blockReward, blockOutput, poolReward, poolRewardTotal, poolCoinTotal uint64)
	Payout(height int32, address string, amountSat uint64, txid string, accumulatedAfter *big.Int)
	Withdrawal(height int32, txid string, vout int, address string, amountSat uint64)
}

// NopDebugSink discards every record; the default when debug is off.
type NopDebugSink struct{}

func (NopDebugSink) Credit(int32, string, uint64, uint64, uint64, *big.Int, *big.Int) {}
func (NopDebugSink) UnassignedBonus(int32, string, uint64)                            {}
func (NopDebugSink) PoolBlock(int32, uint64, uint64, uint64, uint64, uint64)          {}
func (NopDebugSink) Payout(int32, string, uint64, string, *big.Int)                   {}
func (NopDebugSink) Withdrawal(int32, string, int, string, uint64)                    {}

// CSVDebugSink appends one line per event to per-address and pool-wide
// CSV files under dir, matching the layout of the original's debugDir.
type CSVDebugSink struct {
	dir string
	mu  sync.Mutex
}

func NewCSVDebugSink(dir string) *CSVDebugSink {
	return &CSVDebugSink{dir: dir}
}

func (s *CSVDebugSink) appendLine(name, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	f.WriteString(line + "\n")
}

func (s *CSVDebugSink) Credit(height int32, address string, poolCoinTotal, addrValue, stakeBonusAssigned uint64, addrReward, addrTotal *big.Int) {
	s.appendLine(address+".csv", fmt.Sprintf("%d,%s,%s,%s,%s,%s",
		height, codec.FormatSatoshi(int64(poolCoinTotal)), codec.FormatSatoshi(int64(addrValue)),
		codec.FormatSatoshi(int64(stakeBonusAssigned)), codec.FormatX16(addrReward), codec.FormatX16(addrTotal)))
}

func (s *CSVDebugSink) UnassignedBonus(height int32, kernelAddr string, bonusSat uint64) {
	s.appendLine("pool.csv", fmt.Sprintf("%d,unassigned_bonus,%s,%s", height, kernelAddr, codec.FormatSatoshi(int64(bonusSat))))
}

func (s *CSVDebugSink) PoolBlock(height int32, blockReward, blockOutput, poolReward, poolRewardTotal, poolCoinTotal uint64) {
	s.appendLine("pool.csv", fmt.Sprintf("%d,%s,%s,%s,%s,%s",
		height, codec.FormatSatoshi(int64(blockReward)), codec.FormatSatoshi(int64(blockOutput)),
		codec.FormatSatoshi(int64(poolReward)), codec.FormatSatoshi(int64(poolRewardTotal)), codec.FormatSatoshi(int64(poolCoinTotal))))
}

func (s *CSVDebugSink) Payout(height int32, address string, amountSat uint64, txid string, accumulatedAfter *big.Int) {
	s.appendLine(address+".csv", fmt.Sprintf("%d,,,,,%s,%s,%s", height, codec.FormatX16(accumulatedAfter), codec.FormatSatoshi(int64(amountSat)), txid))
}

func (s *CSVDebugSink) Withdrawal(height int32, txid string, vout int, address string, amountSat uint64) {
	s.appendLine("pool_withdrawals.csv", fmt.Sprintf("%d,%s,%d,%s,%s", height, txid, vout, address, codec.FormatSatoshi(int64(amountSat))))
}
