package streamtest

import (
	"fmt"

	"github.com/vbendeb/opentitan/devicedef"
)

// ConfigError reports a stream layout this harness cannot run. It is always raised
// before any traffic has started.
type ConfigError struct {
	Index int
	Type  devicedef.TransferType
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("stream %d: no transport available for %s streams", e.Index, e.Type)
}

// OpenError reports a stream that could not be opened. By the time it is returned,
// every stream opened before it has been stopped again.
type OpenError struct {
	Index int
	Type  devicedef.TransferType
	Err   error
}

func (e OpenError) Error() string {
	return fmt.Sprintf("opening stream %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e OpenError) Unwrap() error { return e.Err }

// RunError reports a failure after streaming had started. The streams have been
// stopped by the time it is returned.
type RunError struct {
	Err error
}

func (e RunError) Error() string { return fmt.Sprintf("streaming failed: %v", e.Err) }

func (e RunError) Unwrap() error { return e.Err }
