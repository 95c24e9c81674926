package streamtest

import (
	"fmt"
	"io"
	"time"

	"github.com/vbendeb/opentitan/usbdev"
	"github.com/vbendeb/opentitan/usbstream"
)

// suspendCoordinator walks the device through suspend/resume cycles while the test
// runs. It owns the dwell timing of each state; the device handle owns the bus
// operations.
//
// One cycle: after RunInterval of streaming the streams are paused and the device is
// suspended; SuspendingDwell later the device counts as suspended; SuspendedDwell
// later resume signaling starts; ResumeDwell later the streams pick up again and the
// interval timer restarts.
type suspendCoordinator struct {
	device  DeviceControl
	streams []usbstream.Stream
	cfg     RunConfig
	clock   Clock
	out     io.Writer

	stateEntry time.Time
	cycles     int
}

func newSuspendCoordinator(
	device DeviceControl,
	streams []usbstream.Stream,
	cfg RunConfig,
	clock Clock,
	out io.Writer,
) *suspendCoordinator {
	return &suspendCoordinator{
		device:     device,
		streams:    streams,
		cfg:        cfg,
		clock:      clock,
		out:        out,
		stateEntry: clock.Now(),
	}
}

func (c *suspendCoordinator) dwell() time.Duration {
	return c.clock.Now().Sub(c.stateEntry)
}

func (c *suspendCoordinator) enterState() {
	c.stateEntry = c.clock.Now()
}

// tick advances the cycle by one polling iteration. done suppresses starting another
// suspend once the streams have finished.
func (c *suspendCoordinator) tick(state usbdev.DeviceState, done bool) error {
	switch state {
	case usbdev.StateStreaming:
		if !c.cfg.Suspending || done || c.dwell() < c.cfg.RunInterval {
			return nil
		}
		fmt.Fprintln(c.out, "Waiting to suspend")
		for _, s := range c.streams {
			s.Pause()
		}
		if err := c.device.Suspend(); err != nil {
			return err
		}
		c.enterState()

	case usbdev.StateSuspending:
		if c.dwell() >= c.cfg.SuspendingDwell {
			c.device.SetState(usbdev.StateSuspended)
			c.enterState()
			fmt.Fprintln(c.out, "Suspended")
		}

	case usbdev.StateSuspended:
		if c.dwell() >= c.cfg.SuspendedDwell {
			if err := c.device.Resume(); err != nil {
				return err
			}
			c.enterState()
		}

	case usbdev.StateResuming:
		if c.dwell() >= c.cfg.ResumeDwell {
			for _, s := range c.streams {
				s.Resume()
			}
			c.device.SetState(usbdev.StateStreaming)
			c.enterState()
			c.cycles++
		}
	}
	return nil
}
