package mockdev

import (
	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/framework/helpers"
	"github.com/vbendeb/opentitan/usbstream"
)

// OpenRequest records one OpenStream call.
type OpenRequest struct {
	Index int
	Type  devicedef.TransferType
}

// MockFactory hands out MockStreams by index and records what was asked of it.
// Streams not preloaded into Streams are created on demand, with their transfer
// amount taken from the open options the orchestrator passed.
type MockFactory struct {
	Streams map[int]*MockStream

	// Unsupported lists transfer types Supports rejects.
	Unsupported []devicedef.TransferType

	// FailAtIndex makes opening that stream index fail with OpenErr.
	FailAtIndex int
	OpenErr     error

	Opened []OpenRequest
}

func NewMockFactory() *MockFactory {
	return &MockFactory{Streams: make(map[int]*MockStream), FailAtIndex: -1}
}

func (f *MockFactory) Supports(t devicedef.TransferType) bool {
	for _, u := range f.Unsupported {
		if t == u {
			return false
		}
	}
	return true
}

func (f *MockFactory) OpenStream(
	index int,
	t devicedef.TransferType,
	options ...usbstream.StreamOption,
) (usbstream.Stream, error) {
	f.Opened = append(f.Opened, OpenRequest{Index: index, Type: t})
	if f.OpenErr != nil && index == f.FailAtIndex {
		return nil, f.OpenErr
	}
	var cfg usbstream.StreamConfig
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return nil, err
	}
	s := f.Streams[index]
	if s == nil {
		s = &MockStream{Index: index}
		f.Streams[index] = s
	}
	if s.TransferTotal == 0 {
		s.TransferTotal = cfg.TransferBytes
	}
	return s, nil
}
