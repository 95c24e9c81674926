package usbstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/framework/helpers"
)

// deviceTransmission builds what the device would send: a signature followed by the
// LFSR payload it describes.
func deviceTransmission(index int, seed byte, payload int) []byte {
	sig := devicedef.StreamSignature{InitLFSR: seed, Stream: uint8(index), NumBytes: uint32(payload)}
	data := sig.Encode()
	l := LFSR(seed)
	for i := 0; i < payload; i++ {
		data = append(data, l.Next())
	}
	return data
}

func TestStreamBaseDataPath(t *testing.T) {
	newBase := func(index int, cfg StreamConfig) streamBase {
		return newStreamBase(index, cfg.withDefaults())
	}

	t.Run("round trip", func(t *testing.T) {
		base := newBase(2, StreamConfig{TransferBytes: 0x40, Retrieve: true, Check: true, Send: true})
		require.NoError(t, base.absorb(deviceTransmission(2, 0x35, 0x20)))

		// The signature overrides the configured transfer amount.
		assert.Equal(t, uint32(0x20), base.TransferBytes())
		assert.Equal(t, uint32(0x20), base.BytesRecvd())
		assert.False(t, base.Completed())

		out := make([]byte, 0x100)
		n := base.fill(out)
		require.Equal(t, 0x20, n)

		dev := LFSR(0x35)
		host := LFSR(0x35 ^ 0xFF)
		for i := 0; i < n; i++ {
			assert.Equal(t, dev.Next()^host.Next(), out[i], "position %d", i)
		}

		base.noteSent(n)
		assert.Equal(t, uint32(0x20), base.BytesSent())
		assert.True(t, base.Completed())
	})

	t.Run("signature split across reads", func(t *testing.T) {
		base := newBase(0, StreamConfig{Retrieve: true, Check: true})
		msg := deviceTransmission(0, 0x7F, 8)
		require.NoError(t, base.absorb(msg[:5]))
		require.NoError(t, base.absorb(msg[5:12]))
		assert.False(t, base.seeded)
		require.NoError(t, base.absorb(msg[12:]))
		assert.True(t, base.seeded)
		assert.Equal(t, uint32(8), base.BytesRecvd())
	})

	t.Run("mismatched payload is an error", func(t *testing.T) {
		base := newBase(0, StreamConfig{Retrieve: true, Check: true})
		msg := deviceTransmission(0, 0x35, 0x10)
		msg[devicedef.SignatureLength+5] ^= 0x80
		err := base.absorb(msg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatched data at offset 0x5")
	})

	t.Run("signature for another stream is an error", func(t *testing.T) {
		base := newBase(1, StreamConfig{Retrieve: true})
		err := base.absorb(deviceTransmission(3, 0x35, 4))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signature for stream 3")
	})

	t.Run("corrupt signature is an error", func(t *testing.T) {
		base := newBase(0, StreamConfig{Retrieve: true})
		msg := deviceTransmission(0, 0x35, 4)
		msg[0] = 0x00
		require.Error(t, base.absorb(msg))
	})

	t.Run("nothing produced before the signature", func(t *testing.T) {
		base := newBase(0, StreamConfig{TransferBytes: 0x100, Send: true})
		assert.Equal(t, 0, base.fill(make([]byte, 16)))
	})

	t.Run("generated return leg when retrieval is off", func(t *testing.T) {
		base := newBase(0, StreamConfig{Retrieve: false, Send: true})
		require.NoError(t, base.absorb(deviceTransmission(0, 0x11, 0)))

		out := make([]byte, 6)
		require.Equal(t, 3, func() int {
			// The signature set the transfer amount to zero payload bytes; bump it to
			// show generation is bounded by the transfer amount, not the buffer.
			base.transferBytes = 3
			return base.fill(out)
		}())

		dev := LFSR(0x11)
		host := LFSR(0x11 ^ 0xFF)
		for i := 0; i < 3; i++ {
			assert.Equal(t, dev.Next()^host.Next(), out[i])
		}
		assert.Equal(t, 0, base.fill(out))
	})

	t.Run("discards payload when retrieval is off", func(t *testing.T) {
		base := newBase(0, StreamConfig{Retrieve: false, Check: true, Send: true})
		require.NoError(t, base.absorb(deviceTransmission(0, 0x42, 0x10)))
		assert.Equal(t, uint32(0x10), base.BytesRecvd())
		assert.Nil(t, base.pending)
	})

	t.Run("receive-only completion", func(t *testing.T) {
		base := newBase(0, StreamConfig{Retrieve: true, Check: true})
		require.NoError(t, base.absorb(deviceTransmission(0, 0x35, 0x10)))
		assert.True(t, base.Completed())
	})

	t.Run("fill drains staged data in order", func(t *testing.T) {
		base := newBase(0, StreamConfig{Retrieve: true, Check: true, Send: true})
		require.NoError(t, base.absorb(deviceTransmission(0, 0x35, 0x10)))

		out := make([]byte, 4)
		dev := LFSR(0x35)
		host := LFSR(0x35 ^ 0xFF)
		for got := uint32(0); got < 0x10; got += 4 {
			require.Equal(t, 4, base.fill(out))
			for i := 0; i < 4; i++ {
				assert.Equal(t, dev.Next()^host.Next(), out[i])
			}
			base.noteSent(4)
		}
		assert.True(t, base.Completed())
	})
}

func TestStreamConfigOptions(t *testing.T) {
	cfg := StreamConfig{}
	require.NoError(t, helpers.ApplyOptions(&cfg, StreamChunkSize(0x200), StreamQueueDepth(4)))
	assert.Equal(t, 0x200, cfg.ChunkSize)
	assert.Equal(t, 4, cfg.QueueDepth)

	assert.Error(t, helpers.ApplyOptions(&cfg, StreamChunkSize(0)))
	assert.Error(t, helpers.ApplyOptions(&cfg, StreamQueueDepth(-1)))
}
