package devicedef

// DefaultStreamCount is the number of streams used by tests whose arguments do not
// encode a stream count.
const DefaultStreamCount = 2

// StreamCount returns the number of concurrent streams called for by the descriptor.
// For the stream-oriented tests the count is carried in the low nibble of the first
// argument byte; the high nibble is reserved. Other tests always use two streams.
func StreamCount(desc TestDescriptor) int {
	switch desc.TestNumber {
	case TestNumberStreams, TestNumberIso, TestNumberMixed:
		return int(desc.TestArgs[0] & 0xF)
	default:
		return DefaultStreamCount
	}
}

// TransferTypeForStream returns the transfer type that the descriptor assigns to the
// stream with the given index. The host may still substitute an equivalent transport
// (serial in place of bulk) for some tests; that decision is not made here.
func TransferTypeForStream(desc TestDescriptor, index int) TransferType {
	switch desc.TestNumber {
	case TestNumberIso:
		return TransferTypeIsochronous
	case TestNumberMixed:
		return mixedTransferType(desc.TestArgs, index)
	default:
		return TransferTypeBulk
	}
}

// mixedTransferType decodes the per-stream transfer type for the mixed-traffic test.
// The second, third and fourth argument bytes form a little-endian 24-bit field
// holding two bits per stream.
func mixedTransferType(args [4]byte, index int) TransferType {
	field := uint32(args[3])<<16 | uint32(args[2])<<8 | uint32(args[1])
	switch (field >> (2 * index)) & 3 {
	case 0:
		return TransferTypeControl
	case 1:
		return TransferTypeIsochronous
	case 2:
		return TransferTypeBulk
	default:
		return TransferTypeInterrupt
	}
}
