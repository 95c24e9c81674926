package devicedef

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamCount(t *testing.T) {
	t.Run("taken from low nibble of first argument", func(t *testing.T) {
		for _, number := range []TestNumber{TestNumberStreams, TestNumberIso, TestNumberMixed} {
			t.Run(number.String(), func(t *testing.T) {
				desc := TestDescriptor{TestNumber: number, TestArgs: [4]byte{0x03}}
				assert.Equal(t, 3, StreamCount(desc))
			})
		}
	})

	t.Run("high nibble is ignored", func(t *testing.T) {
		desc := TestDescriptor{TestNumber: TestNumberStreams, TestArgs: [4]byte{0xF4}}
		assert.Equal(t, 4, StreamCount(desc))
	})

	t.Run("other tests default to two streams", func(t *testing.T) {
		for _, number := range []TestNumber{TestNumberSmoke, TestNumberSuspend, TestNumber(0x7F)} {
			t.Run(number.String(), func(t *testing.T) {
				desc := TestDescriptor{TestNumber: number, TestArgs: [4]byte{0x03}}
				assert.Equal(t, DefaultStreamCount, StreamCount(desc))
			})
		}
	})
}

func TestTransferTypeForStream(t *testing.T) {
	t.Run("bulk for streams test", func(t *testing.T) {
		desc := TestDescriptor{TestNumber: TestNumberStreams, TestArgs: [4]byte{0x04}}
		for i := 0; i < 4; i++ {
			assert.Equal(t, TransferTypeBulk, TransferTypeForStream(desc, i))
		}
	})

	t.Run("isochronous for iso test", func(t *testing.T) {
		desc := TestDescriptor{TestNumber: TestNumberIso, TestArgs: [4]byte{0x04}}
		for i := 0; i < 4; i++ {
			assert.Equal(t, TransferTypeIsochronous, TransferTypeForStream(desc, i))
		}
	})

	t.Run("bulk for unrecognized test", func(t *testing.T) {
		desc := TestDescriptor{TestNumber: TestNumber(0x7F)}
		assert.Equal(t, TransferTypeBulk, TransferTypeForStream(desc, 0))
	})

	t.Run("mixed traffic decodes two bits per stream", func(t *testing.T) {
		// 0b11100100 assigns a different type to each of four streams.
		desc := TestDescriptor{TestNumber: TestNumberMixed, TestArgs: [4]byte{0x04, 0xE4, 0x00, 0x00}}
		expected := []TransferType{TransferTypeControl, TransferTypeIsochronous, TransferTypeBulk, TransferTypeInterrupt}
		for i, want := range expected {
			t.Run(fmt.Sprintf("stream %d", i), func(t *testing.T) {
				assert.Equal(t, want, TransferTypeForStream(desc, i))
			})
		}
	})

	t.Run("mixed traffic field spans the upper argument bytes", func(t *testing.T) {
		// Stream 11 occupies bits 22-23, the top of the fourth argument byte.
		desc := TestDescriptor{TestNumber: TestNumberMixed, TestArgs: [4]byte{0x0C, 0x00, 0x00, 0xC0}}
		assert.Equal(t, TransferTypeInterrupt, TransferTypeForStream(desc, 11))
		assert.Equal(t, TransferTypeControl, TransferTypeForStream(desc, 10))
	})

	t.Run("all zero arguments decode to control", func(t *testing.T) {
		desc := TestDescriptor{TestNumber: TestNumberMixed, TestArgs: [4]byte{0x04, 0x00, 0x00, 0x00}}
		for i := 0; i < 4; i++ {
			assert.Equal(t, TransferTypeControl, TransferTypeForStream(desc, i))
		}
	})
}
