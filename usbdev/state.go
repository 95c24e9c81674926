package usbdev

import "fmt"

// DeviceState tracks where the device is in the suspend/resume cycle. The test
// orchestrator owns the transitions; Suspend and Resume move the device into the
// transitional states themselves, the orchestrator's timers move it out of them.
type DeviceState int

const (
	StateStreaming DeviceState = iota
	StateSuspending
	StateSuspended
	StateResuming
)

func (s DeviceState) String() string {
	switch s {
	case StateStreaming:
		return "Streaming"
	case StateSuspending:
		return "Suspending"
	case StateSuspended:
		return "Suspended"
	case StateResuming:
		return "Resuming"
	default:
		return fmt.Sprintf("DeviceState(%d)", int(s))
	}
}

func (d *Device) CurrentState() DeviceState {
	return d.state
}

func (d *Device) SetState(state DeviceState) {
	if state != d.state {
		d.cfg.Logger.Printf("device state %s -> %s", d.state, state)
	}
	d.state = state
}
