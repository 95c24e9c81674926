package mockdev

import (
	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/usbdev"
)

// MockDevice is a scripted stand-in for the real device handle. Tests preload the
// descriptor and error fields; the mock records every call so tests can assert how
// the orchestrator drove it. The higher-level streamtest scopes accept it wherever
// they accept usbdev.Device.
type MockDevice struct {
	Descriptor    devicedef.TestDescriptor
	DescriptorErr error

	SuspendErr error
	ResumeErr  error
	ServiceErr error

	// OnService, when set, runs on every Service call in place of returning
	// ServiceErr. Tests use it to advance a ManualClock per polling tick.
	OnService func() error

	SuspendCalls int
	ResumeCalls  int
	ServiceCalls int

	ReportedStatuses []devicedef.TestStatus
	StateChanges     []usbdev.DeviceState

	state usbdev.DeviceState
}

func NewMockDevice(desc devicedef.TestDescriptor) *MockDevice {
	return &MockDevice{Descriptor: desc, state: usbdev.StateStreaming}
}

func (d *MockDevice) ReadTestDescriptor() (devicedef.TestDescriptor, error) {
	if d.DescriptorErr != nil {
		return devicedef.TestDescriptor{}, d.DescriptorErr
	}
	return d.Descriptor, nil
}

func (d *MockDevice) CurrentState() usbdev.DeviceState { return d.state }

func (d *MockDevice) SetState(state usbdev.DeviceState) {
	d.state = state
	d.StateChanges = append(d.StateChanges, state)
}

// Suspend mimics the real handle: it moves the device to StateSuspending and leaves
// the rest of the cycle to the caller.
func (d *MockDevice) Suspend() error {
	d.SuspendCalls++
	if d.SuspendErr != nil {
		return d.SuspendErr
	}
	d.SetState(usbdev.StateSuspending)
	return nil
}

func (d *MockDevice) Resume() error {
	d.ResumeCalls++
	if d.ResumeErr != nil {
		return d.ResumeErr
	}
	d.SetState(usbdev.StateResuming)
	return nil
}

func (d *MockDevice) Service() error {
	d.ServiceCalls++
	if d.OnService != nil {
		return d.OnService()
	}
	return d.ServiceErr
}

func (d *MockDevice) ReportStatus(status devicedef.TestStatus) error {
	d.ReportedStatuses = append(d.ReportedStatuses, status)
	return nil
}
