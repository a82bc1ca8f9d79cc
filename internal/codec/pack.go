package codec

import "encoding/binary"

// The store's keys are a single tag byte followed by a fixed-width
// big-endian encoded field (block height, wallet address, month index).
// Big-endian keeps the ordered store's byte-order iteration equal to
// numeric order, matching the tag scheme used by the original pool's
// leveldb-style key prefixes ('d', 'b', 'p', 'B', 'P', 'Q', 'M').

// PackUint32 encodes v as 4 big-endian bytes.
func PackUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// UnpackUint32 decodes 4 big-endian bytes.
func UnpackUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// PackUint64 encodes v as 8 big-endian bytes.
func PackUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// UnpackUint64 decodes 8 big-endian bytes.
func UnpackUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// Key tags, one byte each, matching the original pool's DB key prefixes.
const (
	TagPoolCounters  byte = 'd' // singleton name -> PoolCounters field
	TagParticipant   byte = 'b' // spend_addr -> ParticipantBalance
	TagPoolReward    byte = 'p' // reward_addr -> PoolRewardBalance
	TagPoolBlock     byte = 'B' // i32(height) -> PoolBlock
	TagSettledPayout byte = 'P' // i32(height) || txid -> SettledPayout
	TagPendingPayout byte = 'Q' // txid -> PendingPayout
	TagMonthMetric   byte = 'M' // "YYYY-MM" -> MonthMetric
)

// Key builds a tagged store key: the tag byte followed by payload.
func Key(tag byte, payload ...[]byte) []byte {
	n := 1
	for _, p := range payload {
		n += len(p)
	}
	k := make([]byte, 1, n)
	k[0] = tag
	for _, p := range payload {
		k = append(k, p...)
	}
	return k
}

// HeightKey builds the tagged key for a height-indexed record.
func HeightKey(tag byte, height uint32) []byte {
	return Key(tag, PackUint32(height))
}

// AddressKey builds the tagged key for an address-indexed record.
func AddressKey(tag byte, address string) []byte {
	return Key(tag, []byte(address))
}
