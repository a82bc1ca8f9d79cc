package codec

import "crypto/sha256"

const b58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Base58Decode reverses Base58Encode without validating the checksum; the
// caller decides whether to verify it. It returns nil if a character
// outside the alphabet is encountered.
func Base58Decode(s string) []byte {
	if len(s) == 0 {
		return []byte{}
	}
	value := make([]byte, 0, len(s))
	value = append(value, 0)
	for i := 0; i < len(s); i++ {
		ofs := indexByte(b58Alphabet, s[i])
		if ofs < 0 {
			return nil
		}
		value = mulAdd(value, 58, ofs)
	}
	// Strip the big-endian leading zero padding byte used as an accumulator seed.
	value = trimLeadingZeros(value)
	if isZero(value) {
		value = value[:0]
	}

	nPad := 0
	for i := 0; i < len(s) && s[i] == b58Alphabet[0]; i++ {
		nPad++
	}
	result := make([]byte, nPad+len(value))
	copy(result[nPad:], value)
	return result
}

// Base58Encode encodes raw bytes (without computing or appending a
// checksum).
func Base58Encode(v []byte) string {
	if len(v) == 0 {
		return ""
	}
	value := make([]byte, 0, len(v))
	value = append(value, 0)
	for _, b := range v {
		value = mulAdd(value, 256, int(b))
	}
	value = trimLeadingZeros(value)

	out := make([]byte, 0, len(v)*138/100+1)
	rem := append([]byte(nil), value...)
	for len(rem) > 0 && !isZero(rem) {
		var mod int
		rem, mod = divmod(rem, 58)
		out = append(out, b58Alphabet[mod])
	}
	nPad := 0
	for _, b := range v {
		if b != 0 {
			break
		}
		nPad++
	}
	for i := 0; i < nPad; i++ {
		out = append(out, b58Alphabet[0])
	}
	reverse(out)
	if len(out) == 0 {
		return string(b58Alphabet[0])
	}
	return string(out)
}

// Base58CheckEncode encodes payload || sha256(sha256(payload))[:4].
func Base58CheckEncode(payload []byte) string {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	buf := make([]byte, 0, len(payload)+4)
	buf = append(buf, payload...)
	buf = append(buf, second[:4]...)
	return Base58Encode(buf)
}

// Base58CheckDecode strips the trailing four-byte checksum and returns the
// payload without validating it; the caller validates.
func Base58CheckDecode(s string) []byte {
	raw := Base58Decode(s)
	if raw == nil || len(raw) < 4 {
		return nil
	}
	return raw[:len(raw)-4]
}

func indexByte(alphabet string, c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}

// mulAdd computes value*base + add over a big-endian byte slice.
func mulAdd(value []byte, base, add int) []byte {
	carry := add
	for i := len(value) - 1; i >= 0; i-- {
		carry += int(value[i]) * base
		value[i] = byte(carry & 0xff)
		carry >>= 8
	}
	for carry > 0 {
		value = append([]byte{byte(carry & 0xff)}, value...)
		carry >>= 8
	}
	return value
}

// divmod divides a big-endian byte slice by a small divisor, returning the
// quotient (with leading zeros stripped) and the remainder.
func divmod(value []byte, div int) ([]byte, int) {
	out := make([]byte, len(value))
	rem := 0
	for i, b := range value {
		cur := rem<<8 | int(b)
		out[i] = byte(cur / div)
		rem = cur % div
	}
	return trimLeadingZeros(out), rem
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	return b[i:]
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
