package streamtest

import (
	"bytes"
	"errors"
	"testing"
	"time"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/framework"
	"github.com/vbendeb/opentitan/framework/usbtest"
	"github.com/vbendeb/opentitan/mockdev"
	"github.com/vbendeb/opentitan/usbdev"
)

type runFixture struct {
	device  *mockdev.MockDevice
	factory *mockdev.MockFactory
	clock   *mockdev.ManualClock
	out     bytes.Buffer
	cfg     RunConfig
}

func newRunFixture(desc devicedef.TestDescriptor) *runFixture {
	f := &runFixture{
		device:  mockdev.NewMockDevice(desc),
		factory: mockdev.NewMockFactory(),
		clock:   mockdev.NewManualClock(),
		cfg:     DefaultRunConfig(),
	}
	f.device.OnService = func() error {
		f.clock.Advance(time.Millisecond)
		return nil
	}
	return f
}

func (f *runFixture) context() StreamTestContext {
	return StreamTestContext{
		Device:  f.device,
		Factory: f.factory,
		Config:  f.cfg,
		Output:  &f.out,
		Clock:   f.clock,
	}
}

func TestRunStreamTestHappyPath(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	f.cfg.TransferBytes = 0x2000
	f.factory.Streams[0] = &mockdev.MockStream{Index: 0, StepBytes: 0x400}
	f.factory.Streams[1] = &mockdev.MockStream{Index: 1, StepBytes: 0x400}

	require.NoError(t, RunStreamTest(f.context()))

	for i := 0; i < 2; i++ {
		s := f.factory.Streams[i]
		assert.Equal(t, uint32(0x1000), s.TransferTotal)
		assert.Equal(t, uint32(0x1000), s.BytesRecvd())
		assert.Equal(t, uint32(0x1000), s.BytesSent())
		assert.Equal(t, 1, s.StopCalls)
	}

	output := f.out.String()
	assert.Contains(t, output, "S0: Bulk\nS1: Bulk\n")
	assert.Contains(t, output, "Streaming...\r")
	assert.Contains(t, output, "Bytes received: 0x2000 -- Left to send: 0x0")
	assert.Contains(t, output, "Test completed in")
	assert.Contains(t, output, "Throughput:")
	assert.Positive(t, f.device.ServiceCalls)
}

func TestRunStreamTestUnevenDivision(t *testing.T) {
	f := newRunFixture(streamsDescriptor(3))
	f.cfg.TransferBytes = 0x2000

	require.NoError(t, RunStreamTest(f.context()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, uint32(0xaab), f.factory.Streams[i].TransferTotal)
	}
}

func TestRunStreamTestVerboseLayout(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	f.cfg.TransferBytes = 0x2000
	f.cfg.Verbose = true

	require.NoError(t, RunStreamTest(f.context()))
	assert.Contains(t, f.out.String(), " - 2 stream(s), 0x1000 bytes each\n")
}

func TestRunStreamTestZeroStreams(t *testing.T) {
	f := newRunFixture(streamsDescriptor(0))

	require.NoError(t, RunStreamTest(f.context()))
	assert.Empty(t, f.factory.Opened)
	assert.Contains(t, f.out.String(), "Test completed in")
}

func TestRunStreamTestStreamFailure(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	failure := errors.New("payload mismatch")
	f.factory.Streams[0] = &mockdev.MockStream{StepBytes: 0x10, FailAtCall: 3, ServiceErr: failure}
	f.factory.Streams[1] = &mockdev.MockStream{Index: 1, StepBytes: 0x10}

	err := RunStreamTest(f.context())
	require.Error(t, err)

	var runErr RunError
	require.True(t, errors.As(err, &runErr))
	assert.ErrorIs(t, err, failure)

	assert.Equal(t, 1, f.factory.Streams[0].StopCalls)
	assert.Equal(t, 1, f.factory.Streams[1].StopCalls)
}

func TestRunStreamTestDeviceFailure(t *testing.T) {
	f := newRunFixture(streamsDescriptor(1))
	gone := errors.New("device went away: no device")
	f.device.OnService = func() error { return gone }

	err := RunStreamTest(f.context())
	require.Error(t, err)

	var runErr RunError
	require.True(t, errors.As(err, &runErr))
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, f.factory.Streams[0].StopCalls)
}

func TestRunStreamTestUnsupportedTransport(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	f.cfg.UseSerial = true
	f.factory.Unsupported = []devicedef.TransferType{devicedef.TransferTypeSerial}

	err := RunStreamTest(f.context())
	require.Error(t, err)

	var configErr ConfigError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, 0, configErr.Index)
	assert.Empty(t, f.factory.Opened)
	assert.Zero(t, f.device.ServiceCalls)
}

func TestRunStreamTestOpenFailure(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	f.factory.FailAtIndex = 1
	f.factory.OpenErr = errors.New("endpoint not found")

	err := RunStreamTest(f.context())
	require.Error(t, err)

	var openErr OpenError
	require.True(t, errors.As(err, &openErr))
	assert.Equal(t, 1, openErr.Index)
	assert.Equal(t, 1, f.factory.Streams[0].StopCalls)
	assert.Zero(t, f.device.ServiceCalls)
}

func TestRunStreamTestMaxRunTime(t *testing.T) {
	f := newRunFixture(streamsDescriptor(1))
	f.factory.Streams[0] = &mockdev.MockStream{TransferTotal: 0x1000, Stuck: true}
	f.cfg.MaxRunTime = 3 * time.Second
	f.device.OnService = func() error {
		f.clock.Advance(time.Second)
		return nil
	}

	err := RunStreamTest(f.context())
	require.Error(t, err)

	var runErr RunError
	require.True(t, errors.As(err, &runErr))
	assert.Contains(t, err.Error(), "not complete after")
	assert.Equal(t, 1, f.factory.Streams[0].StopCalls)
}

func TestRunStreamTestDescriptorError(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	f.device.DescriptorErr = errors.New("control request stalled")

	err := RunStreamTest(f.context())
	assert.ErrorIs(t, err, f.device.DescriptorErr)
	assert.Empty(t, f.factory.Opened)
}

type recordingTestLogger struct {
	skipped  map[string]string
	finished []string
}

func newRecordingTestLogger() *recordingTestLogger {
	return &recordingTestLogger{skipped: make(map[string]string)}
}

func (l *recordingTestLogger) TestStarted(usbtest.TestID)      {}
func (l *recordingTestLogger) TestError(usbtest.TestID, error) {}

func (l *recordingTestLogger) TestFinished(
	id usbtest.TestID,
	result usbtest.TestResult,
	debugOutput framework.CapturedOutput,
) {
	l.finished = append(l.finished, id.String())
}

func (l *recordingTestLogger) TestSkipped(id usbtest.TestID, reason string) {
	l.skipped[id.String()] = reason
}

func (l *recordingTestLogger) EndLog(usbtest.Results) error { return nil }

func TestRunStreamTestSuitePasses(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	f.cfg.TransferBytes = 0x2000
	logger := newRecordingTestLogger()

	results, err := RunStreamTestSuite(f.context(), logger)
	require.NoError(t, err)
	assert.True(t, results.OK())
	assert.Empty(t, results.NonCriticalFailures)

	assert.Contains(t, logger.finished, "streams/streaming")
	assert.Contains(t, logger.finished, "streams/S0 Bulk")
	assert.Contains(t, logger.finished, "streams/S1 Bulk")
	assert.Equal(t,
		map[string]string{"streams/suspend cycling": "suspend cycling not requested"},
		logger.skipped)

	assert.Equal(t, []devicedef.TestStatus{devicedef.TestStatusPassed}, f.device.ReportedStatuses)
}

func TestRunStreamTestSuiteSuspendCycling(t *testing.T) {
	f := newRunFixture(devicedef.TestDescriptor{TestNumber: devicedef.TestNumberSuspend})
	f.cfg.Suspending = true
	f.cfg.TransferBytes = 0x2000
	f.factory.Streams[0] = &mockdev.MockStream{Index: 0, StepBytes: 0x10}
	f.factory.Streams[1] = &mockdev.MockStream{Index: 1, StepBytes: 0x10}

	// Each record holds the device state and stream 0's service count at the end
	// of one polling tick. The state at the end of a tick is the state the next
	// tick starts from.
	type tickRecord struct {
		state        usbdev.DeviceState
		serviceCalls int
	}
	var ticks []tickRecord
	f.device.OnService = func() error {
		ticks = append(ticks, tickRecord{
			state:        f.device.CurrentState(),
			serviceCalls: f.factory.Streams[0].ServiceCalls,
		})
		f.clock.Advance(time.Second)
		return nil
	}

	results, err := RunStreamTestSuite(f.context(), nil)
	require.NoError(t, err)
	assert.True(t, results.OK())

	assert.Positive(t, f.device.SuspendCalls)
	assert.Equal(t, f.device.SuspendCalls, f.device.ResumeCalls)
	for i := 0; i < 2; i++ {
		s := f.factory.Streams[i]
		assert.Equal(t, f.device.SuspendCalls, s.PauseCalls)
		assert.Equal(t, f.device.SuspendCalls, s.ResumeCalls)
	}

	// Streams are serviced only while the device is streaming: a tick starting in
	// any other state must leave the per-stream service counts alone.
	sawSuspendedTick := false
	for i := 1; i < len(ticks); i++ {
		if ticks[i-1].state != usbdev.StateStreaming {
			sawSuspendedTick = true
			assert.Equal(t, ticks[i-1].serviceCalls, ticks[i].serviceCalls,
				"stream serviced during %v", ticks[i-1].state)
		}
	}
	assert.True(t, sawSuspendedTick)

	output := f.out.String()
	assert.Contains(t, output, "Waiting to suspend\n")
	assert.Contains(t, output, "Suspended\n")
	assert.Equal(t, []devicedef.TestStatus{devicedef.TestStatusPassed}, f.device.ReportedStatuses)
}

func TestRunStreamTestSuiteSuspendsAnyTest(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	f.cfg.Suspending = true
	f.cfg.TransferBytes = 0x2000
	f.factory.Streams[0] = &mockdev.MockStream{Index: 0, StepBytes: 0x10}
	f.factory.Streams[1] = &mockdev.MockStream{Index: 1, StepBytes: 0x10}
	f.device.OnService = func() error {
		f.clock.Advance(time.Second)
		return nil
	}
	logger := newRecordingTestLogger()

	results, err := RunStreamTestSuite(f.context(), logger)
	require.NoError(t, err)
	assert.True(t, results.OK())

	assert.Positive(t, f.device.SuspendCalls)
	assert.Equal(t, f.device.SuspendCalls, f.device.ResumeCalls)
	assert.NotContains(t, logger.skipped, "streams/suspend cycling")
	assert.Contains(t, logger.finished, "streams/suspend cycling")
	assert.Contains(t, f.out.String(), "Waiting to suspend\n")
}

func TestRunStreamTestSuiteIsoShortfallIsNonCritical(t *testing.T) {
	f := newRunFixture(devicedef.TestDescriptor{
		TestNumber: devicedef.TestNumberIso,
		TestArgs:   [4]byte{2},
	})
	f.cfg.TransferBytes = 0x2000
	f.factory.Streams[0] = &mockdev.MockStream{Index: 0, ShortRecvBy: 0x40}
	f.factory.Streams[1] = &mockdev.MockStream{Index: 1, ShortRecvBy: 0x40}
	logger := newRecordingTestLogger()

	results, err := RunStreamTestSuite(f.context(), logger)
	require.NoError(t, err)
	assert.True(t, results.OK())

	require.Len(t, results.NonCriticalFailures, 2)
	for _, r := range results.NonCriticalFailures {
		assert.Equal(t, "isochronous delivery is not guaranteed", r.Explanation)
	}
	assert.Contains(t, logger.finished, "iso/S0 Isochronous")
	assert.Equal(t, []devicedef.TestStatus{devicedef.TestStatusPassed}, f.device.ReportedStatuses)
}

func TestRunStreamTestSuiteFailureReportsFailed(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	f.factory.Streams[0] = &mockdev.MockStream{Index: 0, StepBytes: 0x10, FailAtCall: 2}
	f.factory.Streams[1] = &mockdev.MockStream{Index: 1, StepBytes: 0x10}
	logger := newRecordingTestLogger()

	results, err := RunStreamTestSuite(f.context(), logger)
	require.Error(t, err)

	var runErr RunError
	assert.True(t, errors.As(err, &runErr))
	assert.False(t, results.OK())
	assert.Equal(t, []devicedef.TestStatus{devicedef.TestStatusFailed}, f.device.ReportedStatuses)

	failedIDs := make([]string, 0, len(results.Failures))
	for _, r := range results.Failures {
		failedIDs = append(failedIDs, r.TestID.String())
	}
	m.In(t).Assert(failedIDs, m.ItemsInAnyOrder(
		m.Equal("streams/streaming"),
		m.Equal("streams/S0 Bulk"),
		m.Equal("streams/S1 Bulk"),
	))
}

func TestRunStreamTestSuiteDescriptorError(t *testing.T) {
	f := newRunFixture(streamsDescriptor(2))
	f.device.DescriptorErr = errors.New("control request stalled")

	results, err := RunStreamTestSuite(f.context(), nil)
	assert.ErrorIs(t, err, f.device.DescriptorErr)
	assert.Empty(t, results.Tests)
	assert.Empty(t, f.device.ReportedStatuses)
}
