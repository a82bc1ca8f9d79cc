// Package codec implements the wire and display encodings shared by the
// store and RPC layers: satoshi decimal formatting, base58check and
// bech32 address encoding, and the fixed-width big-endian packers used by
// the store's key/value schema.
package codec

import (
	"fmt"
	"math/big"
)

// COIN is the number of satoshi in one coin.
const COIN = 100_000_000

// coinCoin is COIN*COIN, the scale of a sub-satoshi accumulator value
// (satoshi * 10^8).
var coinCoin = new(big.Int).Mul(big.NewInt(COIN), big.NewInt(COIN))

// FormatSatoshi renders a satoshi amount as "d.dddddddd", matching the
// original pool's format8(): eight fractional digits, no rounding, no
// scientific notation, a leading '-' for negatives.
func FormatSatoshi(amount int64) string {
	n := amount
	if n < 0 {
		n = -n
	}
	quotient := n / COIN
	remainder := n % COIN
	s := fmt.Sprintf("%d.%08d", quotient, remainder)
	if amount < 0 {
		s = "-" + s
	}
	return s
}

// FormatX16 renders a satoshi*10^8 accumulator value as
// "d.dddddddddddddddd", sixteen fractional digits, matching the original
// pool's format16(). The accumulator is a non-negative 128-bit integer;
// amount must not be nil.
func FormatX16(amount *big.Int) string {
	neg := amount.Sign() < 0
	n := new(big.Int).Abs(amount)
	quotient, remainder := new(big.Int), new(big.Int)
	quotient.DivMod(n, coinCoin, remainder)
	// remainder is always < coinCoin (10^16), so it fits in an int64.
	s := fmt.Sprintf("%s.%016d", quotient.String(), remainder.Int64())
	if neg {
		s = "-" + s
	}
	return s
}
