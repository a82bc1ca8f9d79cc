package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBech32EncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{1, 2},
		{0x00, 0x14, 0x75, 0x1e, 0x76, 0xe8, 0x19, 0x91, 0x96, 0xd4, 0x54, 0x94, 0x1c, 0x45, 0xd1, 0xb3, 0xa3, 0x23},
		make([]byte, 40),
	}
	for _, payload := range cases {
		enc := Bech32Encode("cs", payload)
		assert.NotEmpty(t, enc)
		dec := Bech32Decode("cs", enc)
		assert.Equal(t, payload, dec)
	}
}

func TestBech32DecodeRejectsHRPMismatch(t *testing.T) {
	enc := Bech32Encode("cs", []byte{1, 2, 3, 4})
	assert.Nil(t, Bech32Decode("tp", enc))
}

func TestBech32DecodeRejectsCorruptChecksum(t *testing.T) {
	enc := Bech32Encode("cs", []byte{1, 2, 3, 4})
	corrupt := enc[:len(enc)-1] + "q"
	if corrupt == enc {
		corrupt = enc[:len(enc)-1] + "p"
	}
	assert.Nil(t, Bech32Decode("cs", corrupt))
}

func TestBech32DecodeRejectsOutOfRangeLength(t *testing.T) {
	assert.Nil(t, Bech32Decode("cs", Bech32Encode("cs", []byte{1})))
	assert.Empty(t, Bech32Encode("cs", make([]byte, 41)))
}
