package streamtest

import "github.com/vbendeb/opentitan/devicedef"

// StreamSpec pairs a stream index with the transfer type carrying it.
type StreamSpec struct {
	Index int
	Type  devicedef.TransferType
}

// StreamSpecs derives the stream layout for a test. The descriptor chooses the count
// and per-stream transfer types; the run configuration chooses whether the plain
// streams test rides serial ports instead of raw bulk endpoints.
func StreamSpecs(desc devicedef.TestDescriptor, cfg RunConfig) []StreamSpec {
	specs := make([]StreamSpec, devicedef.StreamCount(desc))
	for i := range specs {
		specs[i] = StreamSpec{Index: i, Type: streamType(desc, i, cfg)}
	}
	return specs
}

func streamType(desc devicedef.TestDescriptor, index int, cfg RunConfig) devicedef.TransferType {
	t := devicedef.TransferTypeForStream(desc, index)
	if t == devicedef.TransferTypeBulk && desc.TestNumber == devicedef.TestNumberStreams &&
		cfg.UseSerial && !cfg.Suspending {
		return devicedef.TransferTypeSerial
	}
	return t
}

// ValidateSpecs checks the whole layout against the factory before any stream is
// opened, so an unrunnable configuration never generates traffic.
func ValidateSpecs(specs []StreamSpec, factory StreamFactory) error {
	for _, spec := range specs {
		if !factory.Supports(spec.Type) {
			return ConfigError{Index: spec.Index, Type: spec.Type}
		}
	}
	return nil
}
