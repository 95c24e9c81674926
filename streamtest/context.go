package streamtest

import (
	"io"
	"os"
	"time"

	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/framework"
	"github.com/vbendeb/opentitan/usbdev"
	"github.com/vbendeb/opentitan/usbstream"
)

// DeviceControl is the slice of the device handle the orchestrator drives.
// usbdev.Device implements it; mockdev.MockDevice stands in for it in tests.
type DeviceControl interface {
	// ReadTestDescriptor asks the device which test it is running.
	ReadTestDescriptor() (devicedef.TestDescriptor, error)

	CurrentState() usbdev.DeviceState
	SetState(state usbdev.DeviceState)

	// Suspend asks the host controller to suspend the device. The streams must
	// already be paused.
	Suspend() error

	// Resume starts resume signaling for a suspended device.
	Resume() error

	// Service runs the handle's per-tick housekeeping. A non-nil error means the
	// device is gone.
	Service() error

	// ReportStatus tells the device how the test ended.
	ReportStatus(status devicedef.TestStatus) error
}

// StreamFactory opens one stream per index. usbstream.Factory implements it.
type StreamFactory interface {
	// Supports reports whether OpenStream can open streams of the given type.
	Supports(t devicedef.TransferType) bool

	OpenStream(index int, t devicedef.TransferType, options ...usbstream.StreamOption) (usbstream.Stream, error)
}

// Clock supplies the run's timing. Tests replace it to drive the suspend cycle
// without waiting.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// StreamTestContext carries everything one streaming test run needs.
type StreamTestContext struct {
	Device  DeviceControl
	Factory StreamFactory
	Config  RunConfig

	// Output receives the user-facing console lines: the stream layout, the progress
	// line, suspend progress and the final summary. Defaults to os.Stdout.
	Output io.Writer

	// Logger receives debug output. Defaults to discarding it.
	Logger framework.Logger

	// Clock defaults to the wall clock.
	Clock Clock
}

func (c StreamTestContext) withDefaults() StreamTestContext {
	if c.Output == nil {
		c.Output = os.Stdout
	}
	if c.Logger == nil {
		c.Logger = framework.NullLogger()
	}
	if c.Clock == nil {
		c.Clock = wallClock{}
	}
	c.Config = c.Config.withDefaults()
	return c
}
