package usbtest

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/vbendeb/opentitan/framework"
)

type environment struct {
	config  TestConfiguration
	results Results
}

// T is one test scope. It deliberately mirrors testing.T closely enough that
// testify's assert and require packages work against it.
type T struct {
	env         *environment
	id          TestID
	debugLogger framework.CapturingLogger
	nonCritical string
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	helperFns   []string
}

// TestConfiguration holds the run-wide settings shared by every scope.
type TestConfiguration struct {
	// TestLogger receives status information about each test.
	TestLogger TestLogger

	// Context is an arbitrary application value reachable from any scope via T.Context.
	Context interface{}

	// Capabilities feeds T.Capabilities and T.RequireCapability.
	Capabilities []string
}

// Run starts a top-level test scope.
func Run(
	config TestConfiguration,
	action func(*T),
) Results {
	if config.TestLogger == nil {
		config.TestLogger = nullTestLogger{}
	}
	env := &environment{
		config: config,
	}
	t := &T{env: env}
	t.run(action)
	return env.results
}

// run executes the scope body and settles its verdict. FailNow and Skip unwind by
// panicking with the T itself; anything else that escapes counts as an unexpected
// panic and fails the scope with a stack dump.
func (t *T) run(action func(*T)) (result TestResult) {
	result.TestID = t.id
	defer func() {
		if r := recover(); r != nil {
			if t.skipped {
				return
			}
			t.failed = true
			var addError error
			if _, ok := r.(*T); ok {
				if len(t.errors) == 0 {
					addError = errors.New("test failed with no failure message")
				}
			} else {
				addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
			}
			if addError != nil {
				t.errors = append(t.errors, addError)
				t.env.config.TestLogger.TestError(t.id, addError)
			}
		}
		result.Errors = t.errors
		if t.failed {
			if t.nonCritical == "" {
				t.env.results.Failures = append(t.env.results.Failures, result)
			} else {
				result.Explanation = t.nonCritical
				result.NonCritical = true
				t.env.results.NonCriticalFailures = append(t.env.results.NonCriticalFailures, result)
			}
		}
		t.env.results.Tests = append(t.env.results.Tests, result)
	}()

	action(t)
	return result
}

// ID returns the full name of the current test.
func (t *T) ID() TestID {
	return t.id
}

// Run runs a subtest in its own scope, like testing.T.Run.
func (t *T) Run(name string, action func(*T)) {
	id := t.id.Plus(name)

	t.env.config.TestLogger.TestStarted(id)
	c1 := &T{
		id:  id,
		env: t.env,
	}
	t.debugLogger.AddChildLogger(&c1.debugLogger) // see comments on t.DebugLogger()
	result := c1.run(action)
	t.debugLogger.RemoveChildLogger(&c1.debugLogger)
	if c1.skipped {
		t.env.config.TestLogger.TestSkipped(id, c1.skipReason)
	} else {
		t.env.config.TestLogger.TestFinished(id, result, c1.debugLogger.Output())
	}
}

// NonCritical downgrades any failure of this scope: it still shows up in the output,
// with the given explanation, but it does not make the run exit non-zero.
func (t *T) NonCritical(explanation string) {
	t.nonCritical = explanation
}

// Errorf records a failure without terminating the scope. Mostly called indirectly,
// through the assert.TestingT surface.
func (t *T) Errorf(format string, args ...interface{}) {
	t.failed = true
	err := fmt.Errorf(format, args...)

	stacktrace := getStacktrace(false, t.helperFns)
	err = transformError(err, stacktrace)

	t.errors = append(t.errors, err)
	t.env.config.TestLogger.TestError(t.id, err)
}

// FailNow terminates the scope immediately and marks it failed. Mostly called
// indirectly, through the require.TestingT surface.
func (t *T) FailNow() {
	panic(t)
}

// Skip terminates the scope immediately and marks it skipped.
func (t *T) Skip() {
	t.skipped = true
	panic(t)
}

// SkipWithReason is Skip with a message for the log.
func (t *T) SkipWithReason(reason string) {
	t.skipReason = reason
	t.Skip()
}

// Debug writes a message to the captured output for this test scope.
func (t *T) Debug(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

// DebugLogger returns a Logger writing to this scope's captured output, which is
// handed to TestLogger.TestFinished when the scope ends.
//
// A subtest's logger starts out with a copy of whatever the parent already logged,
// and while the subtest runs, output sent to the parent's logger is redirected to
// the subtest's. That way a long-lived object owned by the parent scope, a stream
// for instance, has its output land in whichever subtest was active.
func (t *T) DebugLogger() framework.Logger {
	return &t.debugLogger
}

// Context returns the application value from the TestConfiguration, if any.
func (t *T) Context() interface{} {
	return t.env.config.Context
}

// Capabilities returns the capabilities reported by the device under test.
func (t *T) Capabilities() framework.Capabilities {
	return append(framework.Capabilities(nil), t.env.config.Capabilities...)
}

// RequireCapability skips the test unless the device has the named capability.
func (t *T) RequireCapability(name string) {
	if !t.Capabilities().Has(name) {
		t.SkipWithReason(fmt.Sprintf("device does not have capability %q", name))
	}
}

// Helper marks the calling function as a test helper to be left out of stacktraces,
// like testing.T.Helper.
func (t *T) Helper() {
	pc, _, _, ok := runtime.Caller(1) // 0 is Helper() itself, 1 is who called it
	if !ok {
		return
	}
	f := runtime.FuncForPC(pc)
	if f == nil {
		return
	}
	t.helperFns = append(t.helperFns, f.Name())
}
