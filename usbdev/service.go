package usbdev

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

const requestGetStatus = 0x00

// gousb omits the standard request type constant (LIBUSB_REQUEST_TYPE_STANDARD,
// value 0x00) from its Control* set; define it here for the GET_STATUS probe.
const controlStandard = 0x00

// Service keeps the device side of the run healthy. It paces the polling loop (the
// underlying USB event handling runs on its own goroutine, so a bare loop would
// spin) and periodically checks that the device still answers on the default control
// pipe. Probing happens only while streaming; a suspended device must not be woken
// by a status request.
func (d *Device) Service() error {
	time.Sleep(d.cfg.TickPause)
	if d.state != StateStreaming || time.Since(d.lastProbe) < d.cfg.ProbeInterval {
		return nil
	}
	d.lastProbe = time.Now()
	var status [2]byte
	if _, err := d.dev.Control(gousb.ControlIn|controlStandard|gousb.ControlDevice,
		requestGetStatus, 0, 0, status[:]); err != nil {
		return fmt.Errorf("device went away: %w", err)
	}
	return nil
}
