package devicedef

import (
	"encoding/binary"
	"fmt"
)

// SignatureLength is the wire size of a stream signature.
const SignatureLength = 0x10

// Stream signature framing words, little-endian on the wire.
const (
	SignatureHead uint32 = 0x579EA01A
	SignatureTail uint32 = 0x160AE975
)

// StreamSignature is sent by the device at the head of each stream's IN data. For
// isochronous streams one precedes every retransmission attempt, so the harness can
// re-synchronize its data checking after lost packets.
//
// In normal use, such as regression tests, the NumBytes field overrides whatever
// transfer amount the host was configured with; the device side owns the decision of
// how much data each stream carries.
type StreamSignature struct {
	// InitLFSR seeds the device-side LFSR generating this stream's data.
	InitLFSR uint8
	// Stream carries the stream index in its low nibble; the high nibble is reserved.
	Stream uint8
	// NumBytes is the per-stream transfer amount chosen by the device.
	NumBytes uint32
}

// StreamIndex returns the stream index the signature belongs to.
func (s StreamSignature) StreamIndex() uint8 { return s.Stream & 0xF }

// HasSignatureHead reports whether data begins with the signature head word. It lets
// transports distinguish a (re)transmitted signature from stream payload without
// committing to a full parse.
func HasSignatureHead(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == SignatureHead
}

// ParseStreamSignature decodes the wire form of a stream signature:
// head word, init LFSR, stream byte, byte count, 2 reserved bytes, tail word.
func ParseStreamSignature(data []byte) (StreamSignature, error) {
	var sig StreamSignature
	if len(data) < SignatureLength {
		return sig, fmt.Errorf("stream signature too short: %d bytes, want %d", len(data), SignatureLength)
	}
	if head := binary.LittleEndian.Uint32(data[0:4]); head != SignatureHead {
		return sig, fmt.Errorf("stream signature has bad head 0x%08x", head)
	}
	if tail := binary.LittleEndian.Uint32(data[12:16]); tail != SignatureTail {
		return sig, fmt.Errorf("stream signature has bad tail 0x%08x", tail)
	}
	sig.InitLFSR = data[4]
	sig.Stream = data[5]
	sig.NumBytes = binary.LittleEndian.Uint32(data[6:10])
	return sig, nil
}

// Encode produces the wire form of the signature; the inverse of ParseStreamSignature.
func (s StreamSignature) Encode() []byte {
	data := make([]byte, SignatureLength)
	binary.LittleEndian.PutUint32(data[0:4], SignatureHead)
	data[4] = s.InitLFSR
	data[5] = s.Stream
	binary.LittleEndian.PutUint32(data[6:10], s.NumBytes)
	binary.LittleEndian.PutUint32(data[12:16], SignatureTail)
	return data
}
