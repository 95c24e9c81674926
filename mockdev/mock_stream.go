package mockdev

import (
	"errors"

	"github.com/vbendeb/opentitan/usbstream"
)

var errMockStream = errors.New("mock stream failure")

// MockStream is a scripted usbstream.Stream. Each Service call moves StepBytes in
// both directions until the scripted targets are reached; a zero StepBytes moves
// everything in one call. ShortRecvBy lowers both targets below the transfer amount,
// the way a lossy isochronous stream ends up short.
type MockStream struct {
	Index int

	TransferTotal uint32
	StepBytes     uint32
	ShortRecvBy   uint32

	// Stuck keeps the stream from ever making progress.
	Stuck bool

	// FailAtCall makes that Service call (1-based) return ServiceErr.
	FailAtCall int
	ServiceErr error
	StopErr    error

	// OnStop, when set, runs on every Stop call. Tests use it to record stop
	// ordering across a stream set.
	OnStop func()

	ServiceCalls int
	PauseCalls   int
	ResumeCalls  int
	StopCalls    int

	paused  bool
	stopped bool
	recvd   uint32
	sent    uint32
}

var _ usbstream.Stream = (*MockStream)(nil)

func (s *MockStream) Service() error {
	s.ServiceCalls++
	if s.FailAtCall > 0 && s.ServiceCalls == s.FailAtCall {
		if s.ServiceErr != nil {
			return s.ServiceErr
		}
		return errMockStream
	}
	if s.paused || s.stopped || s.Stuck {
		return nil
	}
	target := s.target()
	s.recvd = advance(s.recvd, s.StepBytes, target)
	s.sent = advance(s.sent, s.StepBytes, target)
	return nil
}

func advance(current, step, target uint32) uint32 {
	if step == 0 || current+step > target {
		return target
	}
	return current + step
}

func (s *MockStream) target() uint32 {
	if s.ShortRecvBy > s.TransferTotal {
		return 0
	}
	return s.TransferTotal - s.ShortRecvBy
}

func (s *MockStream) Pause() {
	s.PauseCalls++
	s.paused = true
}

func (s *MockStream) Resume() {
	s.ResumeCalls++
	s.paused = false
}

func (s *MockStream) Stop() error {
	s.StopCalls++
	s.stopped = true
	if s.OnStop != nil {
		s.OnStop()
	}
	return s.StopErr
}

func (s *MockStream) Completed() bool {
	return s.recvd >= s.target() && s.sent >= s.target()
}

func (s *MockStream) TransferBytes() uint32 { return s.TransferTotal }
func (s *MockStream) BytesRecvd() uint32    { return s.recvd }
func (s *MockStream) BytesSent() uint32     { return s.sent }
