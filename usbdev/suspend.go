package usbdev

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const sysfsUSBDevices = "/sys/bus/usb/devices"

// sysfsDeviceNode builds the kernel's name for a device: the bus number followed by
// the chain of hub ports leading to it, e.g. "1-1.4". Root hubs have no port path
// and cannot be suspend targets.
func sysfsDeviceNode(bus int, ports []int) (string, error) {
	if len(ports) == 0 {
		return "", fmt.Errorf("device on bus %d has no port path", bus)
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return fmt.Sprintf("%d-%s", bus, strings.Join(parts, ".")), nil
}

func (d *Device) writePowerFile(file, value string) error {
	path := filepath.Join(sysfsUSBDevices, d.sysfsNode, "power", file)
	if err := os.WriteFile(path, []byte(value), 0o200); err != nil {
		return fmt.Errorf("writing %q to %s: %w", value, path, err)
	}
	return nil
}

// Suspend asks the kernel to autosuspend the device as soon as it is idle. The
// streams must already be paused; the kernel will not suspend a device with
// transfers pending.
func (d *Device) Suspend() error {
	if d.sysfsNode == "" {
		return fmt.Errorf("cannot suspend: the device's sysfs power node is not known")
	}
	if err := d.writePowerFile("autosuspend_delay_ms", "0"); err != nil {
		return err
	}
	if err := d.writePowerFile("control", "auto"); err != nil {
		return err
	}
	d.SetState(StateSuspending)
	return nil
}

// Resume takes the device out of autosuspend and starts resume signaling on the bus.
func (d *Device) Resume() error {
	if d.sysfsNode == "" {
		return fmt.Errorf("cannot resume: the device's sysfs power node is not known")
	}
	if err := d.writePowerFile("control", "on"); err != nil {
		return err
	}
	d.SetState(StateResuming)
	return nil
}
