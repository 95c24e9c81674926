package usbdev

import (
	"fmt"

	"github.com/google/gousb"

	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/deviceinfo"
)

// VendorRead issues a vendor-specific IN request on the default control pipe.
func (d *Device) VendorRead(request uint8, value, index uint16, data []byte) (int, error) {
	return d.dev.Control(gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice,
		request, value, index, data)
}

// VendorWrite issues a vendor-specific OUT request on the default control pipe.
func (d *Device) VendorWrite(request uint8, value, index uint16, data []byte) (int, error) {
	return d.dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
		request, value, index, data)
}

// ReadTestDescriptor asks the device-side test software which test it is running.
// The descriptor also determines the capabilities reported for the device.
func (d *Device) ReadTestDescriptor() (devicedef.TestDescriptor, error) {
	buf := make([]byte, devicedef.TestDescriptorLength)
	n, err := d.VendorRead(devicedef.VendorGetTestConfig, 0, 0, buf)
	if err != nil {
		return devicedef.TestDescriptor{}, fmt.Errorf("reading the test descriptor: %w", err)
	}
	desc, err := devicedef.ParseTestDescriptor(buf[:n])
	if err != nil {
		return devicedef.TestDescriptor{}, err
	}
	d.cfg.Logger.Printf("test descriptor: %s", desc)
	d.info.Descriptor = desc
	d.info.Capabilities = deviceinfo.CapabilitiesForDescriptor(desc)
	return desc, nil
}

// ReportStatus tells the device-side software the host's verdict on the test.
func (d *Device) ReportStatus(status devicedef.TestStatus) error {
	if _, err := d.VendorWrite(devicedef.VendorSetTestStatus, uint16(status), 0, nil); err != nil {
		return fmt.Errorf("reporting test status %q: %w", status, err)
	}
	return nil
}
