package devicedef

import "fmt"

// TransferType identifies the transport used by a single stream. The values of the four
// USB endpoint types match the 2-bit codes used in mixed-mode test descriptors; Serial
// is a host-side substitution for Bulk and never appears on the wire.
type TransferType uint8

const (
	TransferTypeControl     TransferType = 0
	TransferTypeIsochronous TransferType = 1
	TransferTypeBulk        TransferType = 2
	TransferTypeInterrupt   TransferType = 3
	TransferTypeSerial      TransferType = 4
)

func (t TransferType) String() string {
	switch t {
	case TransferTypeControl:
		return "Control"
	case TransferTypeIsochronous:
		return "Isochronous"
	case TransferTypeBulk:
		return "Bulk"
	case TransferTypeInterrupt:
		return "Interrupt"
	case TransferTypeSerial:
		return "Serial"
	default:
		return fmt.Sprintf("TransferType(%d)", uint8(t))
	}
}

// Capability names reported for a device based on its test descriptor. A capability is
// present when the configured test will exercise that kind of traffic, plus "suspend"
// when the test tolerates suspend/resume cycling.
const (
	CapabilityBulk        = "bulk"
	CapabilityInterrupt   = "interrupt"
	CapabilityControl     = "control"
	CapabilityIsochronous = "isochronous"
	CapabilitySerial      = "serial"
	CapabilitySuspend     = "suspend"
)

// Capability returns the capability name for traffic of this transfer type.
func (t TransferType) Capability() string {
	switch t {
	case TransferTypeControl:
		return CapabilityControl
	case TransferTypeIsochronous:
		return CapabilityIsochronous
	case TransferTypeBulk:
		return CapabilityBulk
	case TransferTypeInterrupt:
		return CapabilityInterrupt
	case TransferTypeSerial:
		return CapabilitySerial
	default:
		return ""
	}
}
