// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of tests. The base package contains shared
// types such as Logger; other components are in the subpackages helpers, opt, and
// usbtest.
//
// The general model is:
//
// 1. The test harness communicates with a device under test, which reports a test
// descriptor describing how many data streams it expects and what transfer type each
// one uses.
//
// 2. The test harness drives those streams against the device, checking the data that
// comes back, while optionally cycling the device through suspend/resume states.
//
// 3. There is a general notion of a test context which is similar to Go's testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results.
//
// The domain-specific code that knows what is being tested is responsible for providing
// the device handle, the stream transport implementations, and domain-specific test APIs
// on top of the test context.
package framework
