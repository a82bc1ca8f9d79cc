package codec

import "strings"

// Bech32 encode/decode, transliterated from the reference segwit_addr
// implementation the original pool imported as
// coldstakepool/contrib/segwit_addr.py, generalized to an arbitrary HRP
// (the pool's cold-stake address prefix) instead of a fixed "bc"/"tb".

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var bech32CharsetRev = func() [128]int8 {
	var rev [128]int8
	for i := range rev {
		rev[i] = -1
	}
	for i, c := range bech32Charset {
		rev[c] = int8(i)
	}
	return rev
}()

func bech32Polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 != 0 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func bech32HRPExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func bech32VerifyChecksum(hrp string, data []byte) bool {
	values := append(bech32HRPExpand(hrp), data...)
	return bech32Polymod(values) == 1
}

func bech32CreateChecksum(hrp string, data []byte) []byte {
	values := append(bech32HRPExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := bech32Polymod(values) ^ 1
	ret := make([]byte, 6)
	for i := 0; i < 6; i++ {
		ret[i] = byte((mod >> uint(5*(5-i))) & 31)
	}
	return ret
}

// bech32EncodeRaw encodes an HRP and a slice of 5-bit groups.
func bech32EncodeRaw(hrp string, data []byte) string {
	combined := append(append([]byte(nil), data...), bech32CreateChecksum(hrp, data)...)
	var sb strings.Builder
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, d := range combined {
		sb.WriteByte(bech32Charset[d])
	}
	return sb.String()
}

// bech32DecodeRaw returns the HRP and 5-bit data groups, or ("", nil) on
// any malformed input or checksum failure.
func bech32DecodeRaw(s string) (string, []byte) {
	if strings.ToLower(s) != s && strings.ToUpper(s) != s {
		return "", nil
	}
	s = strings.ToLower(s)
	pos := strings.LastIndexByte(s, '1')
	if pos < 1 || pos+7 > len(s) || len(s) > 90 {
		return "", nil
	}
	hrp := s[:pos]
	for i := 0; i < len(hrp); i++ {
		if hrp[i] < 33 || hrp[i] > 126 {
			return "", nil
		}
	}
	data := make([]byte, 0, len(s)-pos-1)
	for i := pos + 1; i < len(s); i++ {
		c := s[i]
		if c >= 128 || bech32CharsetRev[c] == -1 {
			return "", nil
		}
		data = append(data, byte(bech32CharsetRev[c]))
	}
	if !bech32VerifyChecksum(hrp, data) {
		return "", nil
	}
	return hrp, data[:len(data)-6]
}

// convertBits regroups a bit stream between differently sized groups (8
// bits per byte <-> 5 bits per bech32 symbol).
func convertBits(data []byte, fromBits, toBits uint, pad bool) []byte {
	acc := uint32(0)
	bits := uint(0)
	maxv := uint32(1<<toBits) - 1
	var ret []byte
	for _, value := range data {
		v := uint32(value)
		if v>>fromBits != 0 {
			return nil
		}
		acc = (acc << fromBits) | v
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			ret = append(ret, byte((acc>>bits)&maxv))
		}
	}
	if pad {
		if bits > 0 {
			ret = append(ret, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || ((acc<<(toBits-bits))&maxv) != 0 {
		return nil
	}
	return ret
}

// Bech32Encode encodes raw payload bytes (e.g. a decoded cold-stake
// address) under the given human-readable prefix. Returns "" if the
// result does not itself decode cleanly (mirrors the original's
// self-check in bech32Encode()).
func Bech32Encode(hrp string, payload []byte) string {
	data := convertBits(payload, 8, 5, true)
	if data == nil {
		return ""
	}
	encoded := bech32EncodeRaw(hrp, data)
	if Bech32Decode(hrp, encoded) == nil {
		return ""
	}
	return encoded
}

// Bech32Decode returns the decoded payload, or nil if the HRP does not
// match or the decoded payload length falls outside [2, 40] bytes.
func Bech32Decode(hrp, addr string) []byte {
	gotHRP, data := bech32DecodeRaw(addr)
	if gotHRP == "" || gotHRP != hrp {
		return nil
	}
	decoded := convertBits(data, 5, 8, false)
	if decoded == nil || len(decoded) < 2 || len(decoded) > 40 {
		return nil
	}
	return decoded
}
