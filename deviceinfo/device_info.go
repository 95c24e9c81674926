// Package deviceinfo provides a data model for information reported by a device under test.
package deviceinfo

import (
	"fmt"

	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/framework"
)

// DeviceInfo is identity and configuration information collected from the device under
// test during enumeration and the initial descriptor query.
type DeviceInfo struct {
	// Product and Manufacturer are the string descriptors reported by the device, if any.
	Product      string
	Manufacturer string

	// SerialNumber distinguishes between multiple attached devices of the same kind.
	SerialNumber string

	// Bus and Address identify where the device is attached on the host.
	Bus     int
	Address int

	// Descriptor is the test descriptor read from the device-side software.
	Descriptor devicedef.TestDescriptor

	// Capabilities is a list of strings representing the kinds of traffic the device's
	// configured test exercises.
	Capabilities framework.Capabilities
}

func Empty() DeviceInfo {
	return DeviceInfo{}
}

func (d DeviceInfo) String() string {
	name := d.Product
	if name == "" {
		name = "unidentified device"
	}
	return fmt.Sprintf("%s (bus %d addr %d): %s", name, d.Bus, d.Address, d.Descriptor)
}

// CapabilitiesForDescriptor derives the capability list from the kinds of traffic the
// descriptor's test exercises. The streams test additionally advertises serial, since
// its bulk streams may be carried over the serial transport instead.
func CapabilitiesForDescriptor(desc devicedef.TestDescriptor) framework.Capabilities {
	var caps framework.Capabilities
	add := func(name string) {
		if !caps.Has(name) {
			caps = append(caps, name)
		}
	}
	for i := 0; i < devicedef.StreamCount(desc); i++ {
		add(devicedef.TransferTypeForStream(desc, i).Capability())
	}
	if desc.TestNumber == devicedef.TestNumberStreams {
		add(devicedef.CapabilitySerial)
	}
	if desc.TestNumber == devicedef.TestNumberSuspend {
		add(devicedef.CapabilitySuspend)
	}
	return caps
}
