// Package streamtest orchestrates a streaming test run against the device under test.
//
// The device's test descriptor chooses the test and its stream layout; this package
// derives the per-stream transports, opens them through a stream factory, and drives
// everything from a single polling loop. While the device is streaming each stream is
// serviced once per tick; when suspend cycling is enabled a coordinator periodically
// pauses the streams, suspends the device and walks it back to streaming. The run can
// be consumed either as a plain operation returning an error, or as a structured test
// suite with a verdict scope per stream.
package streamtest
