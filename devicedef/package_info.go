// Package devicedef contains types and constants defining the vendor-specific test
// protocol between the test harness and the device-side test software.
//
// The device-side software selects a test and reports it to the harness through a test
// descriptor, read with a vendor control request. Stream data carries signatures that
// let the harness synchronize its data checking with the device. None of the types in
// this package have any logic of their own beyond encoding and decoding.
package devicedef
