package ledger

import "github.com/tecnovert/particl-coldstakepool/internal/codec"

// decodeRewardAddr decodes a base58check reward-wallet address to its
// raw (checksum-stripped) byte form, the map key used throughout the
// store's participant and pool-reward-balance tables.
func decodeRewardAddr(addr string) []byte {
	return codec.Base58CheckDecode(addr)
}

func encodeRewardAddr(b []byte) string {
	return codec.Base58CheckEncode(b)
}

// decodePoolAddr decodes the bech32 cold-stake pool address under hrp.
func decodePoolAddr(hrp, addr string) []byte {
	return codec.Bech32Decode(hrp, addr)
}

func encodePoolAddr(hrp string, b []byte) string {
	return codec.Bech32Encode(hrp, b)
}
