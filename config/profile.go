// Package config loads run profiles from disk. A profile is a JSON or YAML file
// carrying the same settings as the command line flags; values given explicitly on
// the command line win over profile values.
package config

import (
	"fmt"
	"os"

	"github.com/vbendeb/opentitan/framework/opt"
	"github.com/vbendeb/opentitan/streamtest"
)

// Profile is the on-disk run configuration. Every field is optional; an absent field
// leaves the corresponding setting alone.
type Profile struct {
	Retrieve opt.Maybe[bool] `json:"retrieve"`
	Check    opt.Maybe[bool] `json:"check"`
	Send     opt.Maybe[bool] `json:"send"`
	Verbose  opt.Maybe[bool] `json:"verbose"`
	Serial   opt.Maybe[bool] `json:"serial"`
	Suspend  opt.Maybe[bool] `json:"suspend"`

	// TransferBytes overrides the total transfer amount for the run.
	TransferBytes opt.Maybe[uint32] `json:"transferBytes"`

	// Device selects the device under test as "bus:address".
	Device opt.Maybe[string] `json:"device"`

	// OutPort and InPort name the serial ports of the first serial stream.
	OutPort opt.Maybe[string] `json:"outPort"`
	InPort  opt.Maybe[string] `json:"inPort"`
}

// LoadProfile reads and parses the profile at path.
func LoadProfile(path string) (Profile, error) {
	var p Profile
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := ParseJSONOrYAML(data, &p); err != nil {
		return p, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return p, nil
}

// Apply overlays the profile's defined values onto a run configuration.
func (p Profile) Apply(cfg streamtest.RunConfig) streamtest.RunConfig {
	cfg.Retrieve = p.Retrieve.OrElse(cfg.Retrieve)
	cfg.Check = p.Check.OrElse(cfg.Check)
	cfg.Send = p.Send.OrElse(cfg.Send)
	cfg.Verbose = p.Verbose.OrElse(cfg.Verbose)
	cfg.UseSerial = p.Serial.OrElse(cfg.UseSerial)
	cfg.Suspending = p.Suspend.OrElse(cfg.Suspending)
	cfg.TransferBytes = p.TransferBytes.OrElse(cfg.TransferBytes)
	return cfg
}
