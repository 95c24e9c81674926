package devicedef

import (
	"bytes"
	"fmt"
)

// Vendor-specific control requests implemented by the device-side test software.
const (
	// VendorGetTestConfig is an IN request returning the test descriptor.
	VendorGetTestConfig = 0x7C

	// VendorStreamIn and VendorStreamOut move stream data over the default control
	// pipe for streams with the Control transfer type. wIndex selects the stream.
	VendorStreamIn  = 0x7D
	VendorStreamOut = 0x7F

	// VendorSetTestStatus is an OUT request reporting the host-side verdict to the
	// device; wValue carries a TestStatus code.
	VendorSetTestStatus = 0x7E
)

// MaxStreams is the maximum number of concurrent streams the protocol supports; the
// stream count nibble in the test descriptor cannot express more.
const MaxStreams = 16

// TestNumber identifies which device-side test is running. Numbers outside the known
// set are valid; the harness treats them as a default two-stream configuration.
type TestNumber uint8

const (
	TestNumberSmoke   TestNumber = 0
	TestNumberStreams TestNumber = 1
	TestNumberIso     TestNumber = 2
	TestNumberMixed   TestNumber = 3
	TestNumberSuspend TestNumber = 4
)

func (t TestNumber) String() string {
	switch t {
	case TestNumberSmoke:
		return "smoke"
	case TestNumberStreams:
		return "streams"
	case TestNumberIso:
		return "iso"
	case TestNumberMixed:
		return "mixed"
	case TestNumberSuspend:
		return "suspend"
	default:
		return fmt.Sprintf("test %d", uint8(t))
	}
}

// TestStatus is a host verdict code for the VendorSetTestStatus request.
type TestStatus uint8

const (
	TestStatusInProgress TestStatus = 0x00
	TestStatusPassed     TestStatus = 0x01
	TestStatusFailed     TestStatus = 0x02
)

func (s TestStatus) String() string {
	switch s {
	case TestStatusInProgress:
		return "in progress"
	case TestStatusPassed:
		return "passed"
	case TestStatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status %d", uint8(s))
	}
}

// TestDescriptorLength is the wire size of the test descriptor returned by
// VendorGetTestConfig.
const TestDescriptorLength = 0x10

// testDescriptorMagic marks the head of a well-formed test descriptor.
var testDescriptorMagic = [4]byte{0x7E, 0x57, 0xC0, 0xF1} //nolint:gochecknoglobals

// TestDescriptor describes the test configuration chosen by the device-side software.
// It is read once before any traffic starts and never changes during a run.
type TestDescriptor struct {
	TestNumber TestNumber
	TestArgs   [4]byte
}

// ParseTestDescriptor decodes the wire form of a test descriptor:
// a 4-byte magic head, the test number, a reserved byte, 4 argument bytes, and
// 6 reserved bytes.
func ParseTestDescriptor(data []byte) (TestDescriptor, error) {
	var td TestDescriptor
	if len(data) < TestDescriptorLength {
		return td, fmt.Errorf("test descriptor too short: %d bytes, want %d", len(data), TestDescriptorLength)
	}
	if !bytes.Equal(data[0:4], testDescriptorMagic[:]) {
		return td, fmt.Errorf("test descriptor has bad magic % #x", data[0:4])
	}
	td.TestNumber = TestNumber(data[4])
	copy(td.TestArgs[:], data[6:10])
	return td, nil
}

// Encode produces the wire form of the descriptor; the inverse of ParseTestDescriptor.
func (td TestDescriptor) Encode() []byte {
	data := make([]byte, TestDescriptorLength)
	copy(data, testDescriptorMagic[:])
	data[4] = byte(td.TestNumber)
	copy(data[6:10], td.TestArgs[:])
	return data
}

func (td TestDescriptor) String() string {
	return fmt.Sprintf("%s (args % #x)", td.TestNumber, td.TestArgs[:])
}
