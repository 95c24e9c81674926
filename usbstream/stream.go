package usbstream

import (
	"fmt"

	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/framework"
	"github.com/vbendeb/opentitan/framework/helpers"
)

// Stream is the transport-independent contract between a stream and the test
// orchestrator. One instance exists per stream index for the duration of a run.
type Stream interface {
	// Service advances the stream's I/O by a bounded amount. It is called once per
	// polling tick while the device is streaming and must not block indefinitely.
	// A non-nil error is fatal for the run.
	Service() error

	// Pause stops the stream from issuing new transfers ahead of a device suspend.
	// In-flight state is kept.
	Pause()

	// Resume lets a paused stream issue transfers again.
	Resume()

	// Stop releases the transport resources. It is safe to call more than once.
	Stop() error

	// Completed reports whether the stream has finished all the work it will do.
	Completed() bool

	// TransferBytes returns the number of payload bytes this stream carries in each
	// direction. The device may override the configured amount via its signature.
	TransferBytes() uint32

	// BytesRecvd returns the number of payload bytes received from the device.
	BytesRecvd() uint32

	// BytesSent returns the number of payload bytes sent back to the device.
	BytesSent() uint32
}

// StreamConfig carries the per-stream settings chosen by the run configuration.
type StreamConfig struct {
	// TransferBytes is the per-stream transfer amount. A stream signature from the
	// device overrides it.
	TransferBytes uint32

	// Retrieve enables collection of IN data. When off, the transport still consumes
	// the device's bytes but discards the payload, and the return leg is generated
	// locally instead.
	Retrieve bool

	// Check enables verification of the received payload against the device sequence.
	Check bool

	// Send enables the return leg carrying data back to the device.
	Send bool

	// Verbose enables per-transfer tracing through the Logger.
	Verbose bool

	// Logger receives stream output; defaults to discarding it.
	Logger framework.Logger

	// ChunkSize is the working buffer size for a single transfer.
	ChunkSize int

	// QueueDepth is the number of transfer buffers queued between a transport's I/O
	// goroutines and Service.
	QueueDepth int
}

const (
	DefaultChunkSize  = 0x1000
	DefaultQueueDepth = 8
)

func (c StreamConfig) withDefaults() StreamConfig {
	if c.Logger == nil {
		c.Logger = framework.NullLogger()
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	return c
}

// StreamOption is the interface for optional stream configuration parameters.
type StreamOption helpers.ConfigOption[StreamConfig]

type streamOptionLogger struct {
	logger framework.Logger
}

func (o streamOptionLogger) Configure(c *StreamConfig) error {
	c.Logger = o.logger
	return nil
}

// StreamLogger directs a stream's output to the given logger.
func StreamLogger(logger framework.Logger) StreamOption {
	return streamOptionLogger{logger}
}

type streamOptionTransferBytes struct {
	amount uint32
}

func (o streamOptionTransferBytes) Configure(c *StreamConfig) error {
	c.TransferBytes = o.amount
	return nil
}

// StreamTransferBytes sets the per-stream transfer amount. The device's signature
// still overrides it.
func StreamTransferBytes(amount uint32) StreamOption {
	return streamOptionTransferBytes{amount}
}

type streamOptionChunkSize struct {
	size int
}

func (o streamOptionChunkSize) Configure(c *StreamConfig) error {
	if o.size <= 0 {
		return fmt.Errorf("invalid stream chunk size %d", o.size)
	}
	c.ChunkSize = o.size
	return nil
}

// StreamChunkSize sets the working buffer size for a single transfer.
func StreamChunkSize(size int) StreamOption {
	return streamOptionChunkSize{size}
}

type streamOptionQueueDepth struct {
	depth int
}

func (o streamOptionQueueDepth) Configure(c *StreamConfig) error {
	if o.depth <= 0 {
		return fmt.Errorf("invalid stream queue depth %d", o.depth)
	}
	c.QueueDepth = o.depth
	return nil
}

// StreamQueueDepth sets the number of transfer buffers queued between a transport's
// I/O goroutines and Service.
func StreamQueueDepth(depth int) StreamOption {
	return streamOptionQueueDepth{depth}
}

// streamBase carries the state shared by every transport: configuration, byte counters,
// signature handling and the LFSR data path. The orchestrator drives each stream from a
// single goroutine; transports with internal I/O goroutines keep them away from these
// fields and exchange data with Service over channels.
type streamBase struct {
	index int
	cfg   StreamConfig

	sigExpected bool
	sigBuf      []byte
	seeded      bool

	recvLFSR LFSR // device sequence, tracks verified incoming data
	genLFSR  LFSR // device sequence, tracks generated data when retrieval is off
	hostLFSR LFSR // host sequence, XORed into the return leg

	transferBytes uint32
	bytesRecvd    uint32
	bytesQueued   uint32
	bytesSent     uint32

	pending []byte // received payload staged for the return leg

	paused  bool
	stopped bool
}

func newStreamBase(index int, cfg StreamConfig) streamBase {
	return streamBase{
		index:         index,
		cfg:           cfg,
		sigExpected:   true,
		transferBytes: cfg.TransferBytes,
	}
}

// absorb runs received bytes through the data path: signature consumption first, then
// payload verification, counting and staging for the return leg. The signature may be
// split across any number of reads.
func (s *streamBase) absorb(data []byte) error {
	for len(data) > 0 {
		if s.sigExpected {
			need := devicedef.SignatureLength - len(s.sigBuf)
			if need > len(data) {
				need = len(data)
			}
			s.sigBuf = append(s.sigBuf, data[:need]...)
			data = data[need:]
			if len(s.sigBuf) < devicedef.SignatureLength {
				return nil
			}
			sig, err := devicedef.ParseStreamSignature(s.sigBuf)
			if err != nil {
				return fmt.Errorf("stream %d: %w", s.index, err)
			}
			s.sigBuf = s.sigBuf[:0]
			s.sigExpected = false
			if err := s.applySignature(sig); err != nil {
				return err
			}
			continue
		}
		err := s.absorbPayload(data)
		if err != nil {
			return err
		}
		data = nil
	}
	return nil
}

func (s *streamBase) applySignature(sig devicedef.StreamSignature) error {
	if int(sig.StreamIndex()) != s.index {
		return fmt.Errorf("stream %d: received signature for stream %d", s.index, sig.StreamIndex())
	}
	s.transferBytes = sig.NumBytes
	s.reseed(sig.InitLFSR)
	if s.cfg.Verbose {
		s.logf("signature: init LFSR 0x%02x, 0x%x byte(s)", sig.InitLFSR, sig.NumBytes)
	}
	return nil
}

// reseed restarts the three LFSRs from a device-chosen seed. The host sequence is
// seeded with the complement of the device sequence so the two never coincide.
func (s *streamBase) reseed(initLFSR uint8) {
	s.recvLFSR = LFSR(initLFSR)
	s.genLFSR = LFSR(initLFSR)
	s.hostLFSR = LFSR(initLFSR ^ 0xFF)
	s.seeded = true
}

func (s *streamBase) absorbPayload(data []byte) error {
	if s.cfg.Check {
		for i, b := range data {
			want := s.recvLFSR.Next()
			if b != want {
				return fmt.Errorf("stream %d: mismatched data at offset 0x%x: got 0x%02x, want 0x%02x",
					s.index, s.bytesRecvd+uint32(i), b, want)
			}
		}
	}
	if s.cfg.Send && s.cfg.Retrieve {
		// The XOR with the host sequence happens now rather than on the way out, so
		// that transports which reseed the sequences on every packet stage each
		// payload against its own seed.
		start := len(s.pending)
		s.pending = append(s.pending, data...)
		for i := start; i < len(s.pending); i++ {
			s.pending[i] ^= s.hostLFSR.Next()
		}
	}
	s.bytesRecvd += uint32(len(data))
	return nil
}

// fill produces up to len(buf) bytes for the return leg: staged received data, or a
// locally generated copy of the device sequence XORed with the host sequence when
// retrieval is off. Production over the life of the stream is bounded by the transfer
// amount, and nothing is produced until the device's signature has seeded the
// sequences.
func (s *streamBase) fill(buf []byte) int {
	if !s.cfg.Send || !s.seeded {
		return 0
	}
	n := len(buf)
	if remaining := s.transferBytes - s.bytesQueued; uint32(n) > remaining {
		n = int(remaining)
	}
	if s.cfg.Retrieve && n > len(s.pending) {
		n = len(s.pending)
	}
	if n <= 0 {
		return 0
	}
	if s.cfg.Retrieve {
		copy(buf, s.pending[:n])
		s.pending = s.pending[n:]
		if len(s.pending) == 0 {
			s.pending = nil
		}
	} else {
		for i := 0; i < n; i++ {
			buf[i] = s.genLFSR.Next() ^ s.hostLFSR.Next()
		}
	}
	s.bytesQueued += uint32(n)
	return n
}

// noteSent records payload bytes confirmed as written to the device.
func (s *streamBase) noteSent(n int) {
	s.bytesSent += uint32(n)
	if s.cfg.Verbose && n > 0 {
		s.logf("sent 0x%x byte(s), 0x%x total", n, s.bytesSent)
	}
}

func (s *streamBase) Pause() {
	s.paused = true
}

func (s *streamBase) Resume() {
	s.paused = false
}

func (s *streamBase) Completed() bool {
	if !s.seeded {
		return false
	}
	if s.cfg.Retrieve && s.bytesRecvd < s.transferBytes {
		return false
	}
	if s.cfg.Send && s.bytesSent < s.transferBytes {
		return false
	}
	return true
}

func (s *streamBase) TransferBytes() uint32 {
	return s.transferBytes
}

func (s *streamBase) BytesRecvd() uint32 {
	return s.bytesRecvd
}

func (s *streamBase) BytesSent() uint32 {
	return s.bytesSent
}

func (s *streamBase) logf(format string, args ...interface{}) {
	s.cfg.Logger.Printf("S%d: "+format, append([]interface{}{s.index}, args...)...)
}
