// Package usbstream implements the transport objects that carry stream traffic between
// the harness and the device under test.
//
// Every transport, regardless of the underlying transfer type, presents the same Stream
// contract to the test orchestrator: it is serviced cooperatively once per polling tick,
// can be paused and resumed around device suspend cycles, and exposes byte counters for
// progress aggregation. The data path is shared: the device emits a pseudo-random byte
// sequence framed by a stream signature, and the harness verifies it and returns each
// byte XORed with a second, host-side sequence so the device can verify the return leg.
package usbstream
