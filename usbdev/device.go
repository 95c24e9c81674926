// Package usbdev manages the handle to the device under test: locating it on the
// bus, claiming the interfaces its endpoints live on, the vendor-specific test
// control requests, and suspend/resume through the kernel's power management.
package usbdev

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"

	"github.com/vbendeb/opentitan/deviceinfo"
	"github.com/vbendeb/opentitan/framework"
	"github.com/vbendeb/opentitan/framework/helpers"
)

// Default identity of the device-side test software.
const (
	DefaultVendorID  = 0x18d1
	DefaultProductID = 0x503a
)

// The test device exposes a single configuration.
const deviceConfigNumber = 1

// Locator selects the device under test. Bus and Address narrow the match when
// several identical devices are attached; zero values match any.
type Locator struct {
	VendorID  uint16
	ProductID uint16
	Bus       int
	Address   int
}

func (l Locator) String() string {
	s := fmt.Sprintf("%04x:%04x", l.VendorID, l.ProductID)
	if l.Bus != 0 || l.Address != 0 {
		s += fmt.Sprintf(" at bus %d addr %d", l.Bus, l.Address)
	}
	return s
}

func (l Locator) matches(desc *gousb.DeviceDesc) bool {
	if desc.Vendor != gousb.ID(l.VendorID) || desc.Product != gousb.ID(l.ProductID) {
		return false
	}
	if l.Bus != 0 && desc.Bus != l.Bus {
		return false
	}
	if l.Address != 0 && desc.Address != l.Address {
		return false
	}
	return true
}

// ParseBusAddress parses a "bus:address" device selector, both parts decimal as in
// lsusb output.
func ParseBusAddress(s string) (bus, address int, err error) {
	busStr, addrStr, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, fmt.Errorf("device selector %q is not of the form bus:address", s)
	}
	b, err := strconv.ParseUint(busStr, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("device selector %q has a bad bus number", s)
	}
	a, err := strconv.ParseUint(addrStr, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("device selector %q has a bad device address", s)
	}
	return int(b), int(a), nil
}

// DeviceConfig carries the optional device-handle settings.
type DeviceConfig struct {
	// Logger receives device-level output; defaults to discarding it.
	Logger framework.Logger

	// TickPause is how long Service blocks to pace the polling loop.
	TickPause time.Duration

	// ProbeInterval is how often Service checks that the device still answers.
	ProbeInterval time.Duration
}

const (
	DefaultTickPause     = 100 * time.Microsecond
	DefaultProbeInterval = time.Second
)

func (c DeviceConfig) withDefaults() DeviceConfig {
	if c.Logger == nil {
		c.Logger = framework.NullLogger()
	}
	if c.TickPause <= 0 {
		c.TickPause = DefaultTickPause
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	return c
}

// DeviceOption is the interface for optional device-handle configuration parameters.
type DeviceOption helpers.ConfigOption[DeviceConfig]

type deviceOptionLogger struct {
	logger framework.Logger
}

func (o deviceOptionLogger) Configure(c *DeviceConfig) error {
	c.Logger = o.logger
	return nil
}

// DeviceLogger directs the device handle's output to the given logger.
func DeviceLogger(logger framework.Logger) DeviceOption {
	return deviceOptionLogger{logger}
}

type deviceOptionTickPause struct {
	pause time.Duration
}

func (o deviceOptionTickPause) Configure(c *DeviceConfig) error {
	if o.pause <= 0 {
		return fmt.Errorf("invalid tick pause %v", o.pause)
	}
	c.TickPause = o.pause
	return nil
}

// DeviceTickPause sets how long each Service call blocks to pace the polling loop.
func DeviceTickPause(pause time.Duration) DeviceOption {
	return deviceOptionTickPause{pause}
}

// Device is an open handle to the device under test.
type Device struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config

	claimed    map[int]*gousb.Interface
	claimOrder []int

	cfg       DeviceConfig
	info      deviceinfo.DeviceInfo
	sysfsNode string

	state     DeviceState
	lastProbe time.Time
}

// Open locates the device matching loc and prepares it for streaming: kernel drivers
// are detached from interfaces as the streams claim them, string descriptors populate
// the device info, and the sysfs power node is resolved for suspend signaling.
func Open(loc Locator, options ...DeviceOption) (*Device, error) {
	cfg := DeviceConfig{}.withDefaults()
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return nil, err
	}

	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(loc.matches)
	if len(devs) == 0 {
		_ = ctx.Close()
		if err != nil {
			return nil, fmt.Errorf("locating device %s: %w", loc, err)
		}
		return nil, fmt.Errorf("no USB device matching %s", loc)
	}
	if err != nil {
		cfg.Logger.Printf("ignoring enumeration errors: %v", err)
	}
	dev := devs[0]
	for _, extra := range devs[1:] {
		_ = extra.Close()
	}
	if len(devs) > 1 {
		cfg.Logger.Printf("%d devices match %s; using bus %d addr %d",
			len(devs), loc, dev.Desc.Bus, dev.Desc.Address)
	}

	d := &Device{
		ctx:     ctx,
		dev:     dev,
		claimed: map[int]*gousb.Interface{},
		cfg:     cfg,
		state:   StateStreaming,
	}
	if err := d.setup(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) setup() error {
	if err := d.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("enabling auto-detach: %w", err)
	}
	config, err := d.dev.Config(deviceConfigNumber)
	if err != nil {
		return fmt.Errorf("selecting configuration %d: %w", deviceConfigNumber, err)
	}
	d.config = config

	desc := d.dev.Desc
	d.info = deviceinfo.DeviceInfo{Bus: desc.Bus, Address: desc.Address}
	// String descriptors are read best-effort; a device without them is still usable.
	d.info.Manufacturer, _ = d.dev.Manufacturer()
	d.info.Product, _ = d.dev.Product()
	d.info.SerialNumber, _ = d.dev.SerialNumber()

	node, err := sysfsDeviceNode(desc.Bus, desc.Path)
	if err != nil {
		d.cfg.Logger.Printf("suspend signaling unavailable: %v", err)
	} else {
		d.sysfsNode = node
	}
	d.lastProbe = time.Now()
	return nil
}

// Info returns what is known about the open device. The descriptor and capability
// fields are filled in once ReadTestDescriptor has run.
func (d *Device) Info() deviceinfo.DeviceInfo {
	return d.info
}

// endpointInterface finds the interface carrying the given endpoint and claims it on
// first use. Claiming is deliberately lazy: interfaces backing serial streams stay
// bound to their kernel driver, and auto-detach only unbinds the interfaces this
// process actually drives.
func (d *Device) endpointInterface(number int, dir gousb.EndpointDirection) (*gousb.Interface, error) {
	for _, ifDesc := range d.config.Desc.Interfaces {
		if len(ifDesc.AltSettings) == 0 {
			continue
		}
		found := false
		for _, ep := range ifDesc.AltSettings[0].Endpoints {
			if ep.Number == number && ep.Direction == dir {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		if intf, ok := d.claimed[ifDesc.Number]; ok {
			return intf, nil
		}
		intf, err := d.config.Interface(ifDesc.Number, 0)
		if err != nil {
			return nil, fmt.Errorf("claiming interface %d: %w", ifDesc.Number, err)
		}
		d.claimed[ifDesc.Number] = intf
		d.claimOrder = append(d.claimOrder, ifDesc.Number)
		return intf, nil
	}
	return nil, fmt.Errorf("no %s endpoint %d on the device", dir, number)
}

// InEndpoint opens the IN endpoint with the given number.
func (d *Device) InEndpoint(number int) (*gousb.InEndpoint, error) {
	intf, err := d.endpointInterface(number, gousb.EndpointDirectionIn)
	if err != nil {
		return nil, err
	}
	return intf.InEndpoint(number)
}

// OutEndpoint opens the OUT endpoint with the given number.
func (d *Device) OutEndpoint(number int) (*gousb.OutEndpoint, error) {
	intf, err := d.endpointInterface(number, gousb.EndpointDirectionOut)
	if err != nil {
		return nil, err
	}
	return intf.OutEndpoint(number)
}

// Close releases everything in the reverse order of acquisition. It is safe to call
// on a partially-opened device.
func (d *Device) Close() error {
	var firstErr error
	for i := len(d.claimOrder) - 1; i >= 0; i-- {
		d.claimed[d.claimOrder[i]].Close()
	}
	d.claimOrder = nil
	d.claimed = map[int]*gousb.Interface{}
	if d.config != nil {
		if err := d.config.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.config = nil
	}
	if d.dev != nil {
		if err := d.dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.dev = nil
	}
	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.ctx = nil
	}
	return firstErr
}
