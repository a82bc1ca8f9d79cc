package store

import "github.com/tecnovert/particl-coldstakepool/internal/codec"

// Counters is the in-memory view of the PoolCounters singleton, loaded
// once at startup and kept current by the Scheduler.
type Counters struct {
	CurrentHeight      int32
	DBVersion          int32
	BlocksFound        int32
	LastPaymentRun     int32
	LastWithdrawalRun  int32
	PoolAddr           []byte // bech32-decoded
	RewardAddr         []byte // base58-decoded, no checksum
	PoolFees           uint64
	PoolFeesDetected   uint64
	PoolWithdrawn      uint64
	PoolDisbursed      uint64
}

func readU32(r *Reader, key []byte) (int32, error) {
	v, err := r.Get(key)
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int32(codec.UnpackUint32(v)), nil
}

func readU64(r *Reader, key []byte) (uint64, error) {
	v, err := r.Get(key)
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return codec.UnpackUint64(v), nil
}

func readBytes(r *Reader, key []byte) ([]byte, error) {
	v, err := r.Get(key)
	if err == ErrNotFound {
		return nil, nil
	}
	return v, err
}

// LoadCounters reads the PoolCounters singleton from a snapshot,
// defaulting every absent field to zero (a fresh store).
func LoadCounters(r *Reader) (*Counters, error) {
	c := &Counters{}
	var err error
	if c.CurrentHeight, err = readU32(r, keyCurrentHeight); err != nil {
		return nil, err
	}
	if c.DBVersion, err = readU32(r, keyDBVersion); err != nil {
		return nil, err
	}
	if c.BlocksFound, err = readU32(r, keyBlocksFound); err != nil {
		return nil, err
	}
	if c.LastPaymentRun, err = readU32(r, keyLastPaymentRun); err != nil {
		return nil, err
	}
	if c.LastWithdrawalRun, err = readU32(r, keyLastWithdrawalRun); err != nil {
		return nil, err
	}
	if c.PoolAddr, err = readBytes(r, keyPoolAddr); err != nil {
		return nil, err
	}
	if c.RewardAddr, err = readBytes(r, keyRewardAddr); err != nil {
		return nil, err
	}
	if c.PoolFees, err = readU64(r, keyPoolFees); err != nil {
		return nil, err
	}
	if c.PoolFeesDetected, err = readU64(r, keyPoolFeesDetected); err != nil {
		return nil, err
	}
	if c.PoolWithdrawn, err = readU64(r, keyPoolWithdrawn); err != nil {
		return nil, err
	}
	if c.PoolDisbursed, err = readU64(r, keyPoolDisbursed); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveCounters stages every counter field into batch b.
func SaveCounters(b *Batch, c *Counters) error {
	puts := []struct {
		key []byte
		val []byte
	}{
		{keyCurrentHeight, codec.PackUint32(uint32(c.CurrentHeight))},
		{keyDBVersion, codec.PackUint32(uint32(c.DBVersion))},
		{keyBlocksFound, codec.PackUint32(uint32(c.BlocksFound))},
		{keyLastPaymentRun, codec.PackUint32(uint32(c.LastPaymentRun))},
		{keyLastWithdrawalRun, codec.PackUint32(uint32(c.LastWithdrawalRun))},
		{keyPoolFees, codec.PackUint64(c.PoolFees)},
		{keyPoolFeesDetected, codec.PackUint64(c.PoolFeesDetected)},
		{keyPoolWithdrawn, codec.PackUint64(c.PoolWithdrawn)},
		{keyPoolDisbursed, codec.PackUint64(c.PoolDisbursed)},
	}
	if c.PoolAddr != nil {
		puts = append(puts, struct {
			key []byte
			val []byte
		}{keyPoolAddr, c.PoolAddr})
	}
	if c.RewardAddr != nil {
		puts = append(puts, struct {
			key []byte
			val []byte
		}{keyRewardAddr, c.RewardAddr})
	}
	for _, p := range puts {
		if err := b.Put(p.key, p.val); err != nil {
			return err
		}
	}
	return nil
}
