package devicedef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamSignature(t *testing.T) {
	t.Run("well-formed", func(t *testing.T) {
		data := []byte{
			0x1A, 0xA0, 0x9E, 0x57, // head
			0x7F,       // init LFSR
			0xE2,       // stream (high nibble reserved)
			0x00, 0x00, 0x10, 0x00, // num bytes = 0x100000
			0x00, 0x00, // reserved
			0x75, 0xE9, 0x0A, 0x16, // tail
		}
		sig, err := ParseStreamSignature(data)
		require.NoError(t, err)
		assert.Equal(t, uint8(0x7F), sig.InitLFSR)
		assert.Equal(t, uint8(0x2), sig.StreamIndex())
		assert.Equal(t, uint32(0x100000), sig.NumBytes)
	})

	t.Run("bad head", func(t *testing.T) {
		data := make([]byte, SignatureLength)
		_, err := ParseStreamSignature(data)
		assert.Error(t, err)
	})

	t.Run("bad tail", func(t *testing.T) {
		sig := StreamSignature{InitLFSR: 1, Stream: 0, NumBytes: 64}
		data := sig.Encode()
		data[12] ^= 0xFF
		_, err := ParseStreamSignature(data)
		assert.Error(t, err)
	})

	t.Run("round trip", func(t *testing.T) {
		sig := StreamSignature{InitLFSR: 0xA5, Stream: 0x03, NumBytes: 0x20000}
		sig2, err := ParseStreamSignature(sig.Encode())
		require.NoError(t, err)
		assert.Equal(t, sig, sig2)
	})
}

func TestHasSignatureHead(t *testing.T) {
	sig := StreamSignature{InitLFSR: 1, Stream: 2, NumBytes: 3}
	assert.True(t, HasSignatureHead(sig.Encode()))
	assert.False(t, HasSignatureHead([]byte{0x1A, 0xA0, 0x9E})) // truncated head
	assert.False(t, HasSignatureHead([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
}
