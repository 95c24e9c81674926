package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vbendeb/opentitan/streamtest"
)

// boolValue is a boolean flag accepting the 0/1/n/y value syntax of the original
// stream test tool in addition to Go's own true/false. A bare flag counts as true.
type boolValue bool

func (b *boolValue) String() string { return fmt.Sprintf("%v", bool(*b)) }

func (b *boolValue) IsBoolFlag() bool { return true }

func (b *boolValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "", "1", "y", "true":
		*b = true
	case "0", "n", "false":
		*b = false
	default:
		return fmt.Errorf("bad boolean value %q (want 0, 1, n or y)", s)
	}
	return nil
}

type commandParams struct {
	retrieve   boolValue
	check      boolValue
	send       boolValue
	verbose    boolValue
	serial     boolValue
	suspending boolValue

	deviceSelector string
	outPort        string
	inPort         string

	configFile string
	jUnitFile  string
	debug      bool
	debugAll   bool

	// explicit records which flags appeared on the command line, so that flag values
	// win over profile values without clobbering profile settings with defaults.
	explicit map[string]bool
}

func (c *commandParams) Read(args []string) bool {
	c.retrieve = true
	c.check = true
	c.send = true

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.Var(&c.check, "c", "check any retrieved data against expectations")
	fs.Var(&c.retrieve, "r", "retrieve data from device")
	fs.Var(&c.send, "s", "send data to device")
	fs.Var(&c.serial, "t", "use serial ports (ttyUSBx) in preference to bulk transfer streams")
	fs.Var(&c.verbose, "v", "verbose reporting")
	fs.Var(&c.suspending, "z", "perform suspend-resume signaling throughout the test")
	fs.StringVar(&c.deviceSelector, "d", "",
		"specify a particular USB device by bus number and device address (see 'lsusb' output)")
	fs.StringVar(&c.deviceSelector, "device", "", "same as -d")
	fs.StringVar(&c.configFile, "config", "", "read run settings from the specified JSON/YAML file")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.BoolVar(&c.debug, "debug", false, "show debug output for failed test scopes")
	fs.BoolVar(&c.debugAll, "debug-all", false, "show debug output for everything")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [options] [<output port> [<input port>]]\n\nOptions:\n", args[0])
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\n<bool> values may be 0, 1, n or y; a bare flag counts as 1")
	}

	if err := fs.Parse(args[1:]); err != nil {
		return false
	}

	c.explicit = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { c.explicit[f.Name] = true })

	switch positional := fs.Args(); len(positional) {
	case 0:
	case 1:
		c.outPort = positional[0]
	case 2:
		c.outPort = positional[0]
		c.inPort = positional[1]
	default:
		fmt.Fprintf(os.Stderr, "parameter %q unrecognised\n", positional[2])
		fs.Usage()
		return false
	}
	return true
}

// applyTo overlays the flags that were given explicitly onto a run configuration, so
// that the command line wins over a profile file without erasing its other settings.
func (c *commandParams) applyTo(cfg streamtest.RunConfig) streamtest.RunConfig {
	overlay := []struct {
		name  string
		dst   *bool
		value boolValue
	}{
		{"c", &cfg.Check, c.check},
		{"r", &cfg.Retrieve, c.retrieve},
		{"s", &cfg.Send, c.send},
		{"t", &cfg.UseSerial, c.serial},
		{"v", &cfg.Verbose, c.verbose},
		{"z", &cfg.Suspending, c.suspending},
	}
	for _, o := range overlay {
		if c.explicit[o.name] {
			*o.dst = bool(o.value)
		}
	}
	return cfg
}
