package streamtest

import "time"

// DefaultTransferBytes is the total payload moved by a run, shared between the test's
// streams.
const DefaultTransferBytes = 0x10 << 20

// Timing of the suspend/resume cycling, when it is enabled.
const (
	// DefaultRunInterval is how long the device streams before each suspend.
	DefaultRunInterval = 5 * time.Second

	// DefaultSuspendingDwell is how long the device is given to enter suspend.
	DefaultSuspendingDwell = 5 * time.Millisecond

	// DefaultSuspendedDwell is how long the device is left suspended.
	DefaultSuspendedDwell = 5 * time.Second

	// DefaultResumeDwell is how long resume signaling is given before traffic
	// restarts. The bus signaling lasts at least 20ms and its duration is not under
	// host control.
	DefaultResumeDwell = 30 * time.Millisecond
)

// DefaultReportThreshold is how many newly sent bytes trigger a progress line rewrite.
const DefaultReportThreshold = 0x1000

// RunConfig carries the settings for one streaming test run.
type RunConfig struct {
	// Retrieve collects IN traffic from the device.
	Retrieve bool
	// Check verifies retrieved data against the device's sequences.
	Check bool
	// Send returns data to the device over the OUT side.
	Send bool
	// Verbose enables per-transfer tracing.
	Verbose bool
	// UseSerial carries the plain streams test over host serial ports instead of raw
	// bulk endpoints. Suspending takes precedence; the combination falls back to bulk.
	UseSerial bool
	// Suspending cycles the device through suspend/resume while streaming, whatever
	// test the descriptor announced.
	Suspending bool

	// TransferBytes is the total payload for the whole run, divided across the
	// streams. The device's stream signatures override the per-stream amounts.
	TransferBytes uint32

	RunInterval     time.Duration
	SuspendingDwell time.Duration
	SuspendedDwell  time.Duration
	ResumeDwell     time.Duration

	// ReportThreshold is the progress reporting granularity in bytes.
	ReportThreshold uint32

	// MaxRunTime aborts a run that has not completed in time. Zero means no limit:
	// the device is normally expected to finish on its own.
	MaxRunTime time.Duration
}

// DefaultRunConfig returns the out-of-the-box behavior: retrieve, check and send all
// enabled, no suspend cycling.
func DefaultRunConfig() RunConfig {
	return RunConfig{Retrieve: true, Check: true, Send: true}
}

func (c RunConfig) withDefaults() RunConfig {
	if c.TransferBytes == 0 {
		c.TransferBytes = DefaultTransferBytes
	}
	if c.RunInterval <= 0 {
		c.RunInterval = DefaultRunInterval
	}
	if c.SuspendingDwell <= 0 {
		c.SuspendingDwell = DefaultSuspendingDwell
	}
	if c.SuspendedDwell <= 0 {
		c.SuspendedDwell = DefaultSuspendedDwell
	}
	if c.ResumeDwell <= 0 {
		c.ResumeDwell = DefaultResumeDwell
	}
	if c.ReportThreshold == 0 {
		c.ReportThreshold = DefaultReportThreshold
	}
	return c
}

// perStreamBytes divides the total transfer amount across count streams, rounding up.
func (c RunConfig) perStreamBytes(count int) uint32 {
	if count <= 0 {
		return 0
	}
	return (c.TransferBytes + uint32(count) - 1) / uint32(count)
}
