package main

import (
	_ "embed" // this is required in order for go:embed to work
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/vbendeb/opentitan/config"
	"github.com/vbendeb/opentitan/framework"
	"github.com/vbendeb/opentitan/framework/helpers"
	"github.com/vbendeb/opentitan/framework/usbtest"
	"github.com/vbendeb/opentitan/streamtest"
	"github.com/vbendeb/opentitan/usbdev"
	"github.com/vbendeb/opentitan/usbstream"
)

// The default serial port of the first stream; each further serial stream uses the
// port with the next numeric suffix.
const defaultPortName = "/dev/ttyUSB0"

// Process exit codes. The specific failure classes get distinct codes so that
// regression test drivers can tell a missing device from a failed run.
const (
	exitOK         = 0
	exitUsage      = 1
	exitDeviceInit = 2
	exitStreamOpen = 3
	exitRunFailure = 4
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	fmt.Printf("USB Streaming Test v%s\n", strings.TrimSpace(versionString))
	fmt.Println(" (host-side implementation of usbdev streaming tests)")

	var params commandParams
	if !params.Read(args) {
		return exitUsage
	}

	cfg := streamtest.DefaultRunConfig()
	if params.configFile != "" {
		profile, err := config.LoadProfile(params.configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitUsage
		}
		cfg = profile.Apply(cfg)
		if params.deviceSelector == "" {
			params.deviceSelector = profile.Device.OrElse("")
		}
		if params.outPort == "" {
			params.outPort = profile.OutPort.OrElse("")
		}
		if params.inPort == "" {
			params.inPort = profile.InPort.OrElse("")
		}
	}
	cfg = params.applyTo(cfg)
	outPort := helpers.IfElse(params.outPort != "", params.outPort, defaultPortName)
	inPort := helpers.IfElse(params.inPort != "", params.inPort, defaultPortName)

	loc := usbdev.Locator{VendorID: usbdev.DefaultVendorID, ProductID: usbdev.DefaultProductID}
	if params.deviceSelector != "" {
		bus, address, err := usbdev.ParseBusAddress(params.deviceSelector)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitUsage
		}
		loc.Bus, loc.Address = bus, address
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	dev, err := usbdev.Open(loc, usbdev.DeviceLogger(mainDebugLogger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitDeviceInit
	}
	defer func() {
		if err := dev.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close the device: %v\n", err)
		}
	}()

	// The descriptor is read here, ahead of the run itself, so that the device info
	// given to the test loggers already carries the test configuration.
	if _, err := dev.ReadTestDescriptor(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitDeviceInit
	}
	info := dev.Info()
	fmt.Printf("Found %s\n", info)
	if cfg.Verbose {
		fmt.Printf(" - capabilities: %s\n", strings.Join(helpers.Sorted(info.Capabilities), ", "))
	}

	factory := usbstream.NewFactory(dev, inPort, outPort, usbstream.StreamConfig{
		Retrieve: cfg.Retrieve,
		Check:    cfg.Check,
		Send:     cfg.Send,
		Verbose:  cfg.Verbose,
		Logger:   mainDebugLogger,
	})

	var testLogger usbtest.TestLogger
	consoleLogger := usbtest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	if params.jUnitFile == "" {
		testLogger = consoleLogger
	} else {
		testLogger = &usbtest.MultiTestLogger{Loggers: []usbtest.TestLogger{
			consoleLogger,
			usbtest.NewJUnitTestLogger(params.jUnitFile, info),
		}}
	}

	results, runErr := streamtest.RunStreamTestSuite(streamtest.StreamTestContext{
		Device:  dev,
		Factory: factory,
		Config:  cfg,
		Logger:  mainDebugLogger,
	}, testLogger)

	fmt.Println()
	if logErr := testLogger.EndLog(results); logErr != nil {
		fmt.Fprintf(os.Stderr, "Error writing log: %v\n", logErr)
		if runErr == nil && results.OK() {
			return exitRunFailure
		}
	}

	var configErr streamtest.ConfigError
	var openErr streamtest.OpenError
	switch {
	case errors.As(runErr, &configErr), errors.As(runErr, &openErr):
		return exitStreamOpen
	case runErr != nil, !results.OK():
		return exitRunFailure
	}
	return exitOK
}
