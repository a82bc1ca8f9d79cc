// Package ledger implements the per-participant balance accounting and
// payout/withdrawal bookkeeping that sits between block intake and the
// store: crediting pool wins, reconciling observed payouts, and
// preparing payout/withdrawal batches for dispatch. The package never
// issues a send itself while holding the store mutex — callers split
// each payout into a read phase, an RPC phase, and a write phase (see
// CollectPayoutCandidates / ApplyPayoutGroup).
package ledger

import (
	"fmt"
	"math/big"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/params"
	"github.com/tecnovert/particl-coldstakepool/internal/rpc"
	"github.com/tecnovert/particl-coldstakepool/internal/store"
)

// Logger is the narrow logging surface the ledger needs, satisfied by
// the standard library *log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Engine holds the ledger's fixed configuration: the addresses it
// recognizes, the node client it reads through, and the parameter
// schedule it consults for the currently active fee/bonus/threshold.
type Engine struct {
	RPC          *rpc.Client
	Params       *params.Schedule
	PoolAddrHRP  string
	PoolAddr     string
	RewardAddr   string
	PoolAddrRaw  []byte
	RewardAddrRaw []byte
	Debug        DebugSink
	Log          Logger
}

// New builds an Engine, decoding and validating the configured pool
// and reward addresses up front so a bad address fails at startup
// rather than on the first block.
func New(rpcClient *rpc.Client, sched *params.Schedule, poolAddrHRP, poolAddr, rewardAddr string, debug DebugSink, logger Logger) (*Engine, error) {
	poolRaw := decodePoolAddr(poolAddrHRP, poolAddr)
	if poolRaw == nil {
		return nil, fmt.Errorf("ledger: invalid pool address %q", poolAddr)
	}
	rewardRaw := decodeRewardAddr(rewardAddr)
	if rewardRaw == nil {
		return nil, fmt.Errorf("ledger: invalid reward address %q", rewardAddr)
	}
	if debug == nil {
		debug = NopDebugSink{}
	}
	return &Engine{
		RPC:           rpcClient,
		Params:        sched,
		PoolAddrHRP:   poolAddrHRP,
		PoolAddr:      poolAddr,
		RewardAddr:    rewardAddr,
		PoolAddrRaw:   poolRaw,
		RewardAddrRaw: rewardRaw,
		Debug:         debug,
		Log:           logger,
	}, nil
}

func (e *Engine) logf(format string, v ...interface{}) {
	if e.Log != nil {
		e.Log.Printf(format, v...)
	}
}

// loadParticipant reads a ParticipantRecord from batch b, defaulting to
// the zero record when the address has never been credited before.
func loadParticipant(b *store.Batch, addr []byte) (store.ParticipantRecord, error) {
	v, err := b.Get(store.ParticipantKey(addr))
	if err == store.ErrNotFound {
		return store.ParticipantRecord{Accumulated: big.NewInt(0)}, nil
	}
	if err != nil {
		return store.ParticipantRecord{}, err
	}
	return store.DecodeParticipant(v), nil
}

func saveParticipant(b *store.Batch, addr []byte, rec store.ParticipantRecord) error {
	return b.Put(store.ParticipantKey(addr), store.EncodeParticipant(rec))
}

// coinCoin is COIN*COIN, the scale factor between satoshi and the
// sub-satoshi (satoshi*10^8) accumulator unit.
var coinCoin = new(big.Int).Mul(big.NewInt(codec.COIN), big.NewInt(codec.COIN))

// floorPercent computes floor(amount * percent / 100) in integer
// satoshi, matching the spec's floor-rounding rule. percent is a
// float (e.g. 3.0 for 3%); it is scaled by 1e8 with a single float64
// multiply and truncated to an integer, and everything after that is
// big.Int integer arithmetic — no float touches the accumulator.
func floorPercent(amountSat uint64, percent float64) uint64 {
	if percent <= 0 || amountSat == 0 {
		return 0
	}
	// scale percent by 1e8 to carry enough fractional precision, then
	// divide by (100 * 1e8) with a single integer floor division.
	const scale = 100000000
	scaledPercent := new(big.Int).SetInt64(int64(percent * scale))
	amount := new(big.Int).SetUint64(amountSat)
	num := new(big.Int).Mul(amount, scaledPercent)
	den := big.NewInt(100 * scale)
	q := new(big.Int).Quo(num, den)
	return q.Uint64()
}
