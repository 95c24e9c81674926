package usbstream

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/vbendeb/opentitan/framework/helpers"
)

// SerialStream carries a bulk stream over the kernel's USB serial devices
// (/dev/ttyUSBn) instead of issuing transfers directly. It cannot be used together
// with suspend/resume testing: data buffered inside the tty layer is lost when the
// descriptors are closed and reopened around a suspend cycle.
type SerialStream struct {
	streamBase
	inFD  int
	outFD int

	readBuf  []byte
	writeBuf []byte
}

// OpenSerialStream opens the given port pair in raw non-blocking mode. When the two
// names are equal a single descriptor serves both directions.
func OpenSerialStream(index int, inPort, outPort string, cfg StreamConfig, options ...StreamOption) (*SerialStream, error) {
	cfg = cfg.withDefaults()
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return nil, err
	}
	s := &SerialStream{
		streamBase: newStreamBase(index, cfg),
		inFD:       -1,
		outFD:      -1,
	}
	var err error
	s.inFD, err = openSerialPort(inPort)
	if err != nil {
		return nil, fmt.Errorf("stream %d: %w", index, err)
	}
	if outPort == inPort {
		s.outFD = s.inFD
	} else {
		s.outFD, err = openSerialPort(outPort)
		if err != nil {
			_ = unix.Close(s.inFD)
			return nil, fmt.Errorf("stream %d: %w", index, err)
		}
	}
	s.readBuf = make([]byte, cfg.ChunkSize)
	return s, nil
}

// openSerialPort opens a tty in raw non-blocking mode and flushes anything still
// buffered from a previous run.
func openSerialPort(port string) (int, error) {
	fd, err := unix.Open(port, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", port, err)
	}
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("read terminal attributes of %s: %w", port, err)
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("set terminal attributes of %s: %w", port, err)
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("flush %s: %w", port, err)
	}
	return fd, nil
}

func (s *SerialStream) Service() error {
	if s.stopped || s.paused {
		return nil
	}

	n, err := unix.Read(s.inFD, s.readBuf)
	switch {
	case err == unix.EAGAIN:
	case err != nil:
		return fmt.Errorf("stream %d: read: %w", s.index, err)
	case n > 0:
		if err := s.absorb(s.readBuf[:n]); err != nil {
			return err
		}
	}

	if len(s.writeBuf) == 0 {
		buf := make([]byte, s.cfg.ChunkSize)
		if filled := s.fill(buf); filled > 0 {
			s.writeBuf = buf[:filled]
		}
	}
	if len(s.writeBuf) > 0 {
		w, err := unix.Write(s.outFD, s.writeBuf)
		if err != nil && err != unix.EAGAIN {
			return fmt.Errorf("stream %d: write: %w", s.index, err)
		}
		if w > 0 {
			s.noteSent(w)
			s.writeBuf = s.writeBuf[w:]
		}
	}
	return nil
}

func (s *SerialStream) Stop() error {
	if s.stopped {
		return nil
	}
	s.stopped = true
	var firstErr error
	if s.outFD >= 0 && s.outFD != s.inFD {
		if err := unix.Close(s.outFD); err != nil {
			firstErr = fmt.Errorf("stream %d: close: %w", s.index, err)
		}
	}
	if s.inFD >= 0 {
		if err := unix.Close(s.inFD); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stream %d: close: %w", s.index, err)
		}
	}
	s.inFD = -1
	s.outFD = -1
	return firstErr
}

// NextPortName derives the port name for the following stream by incrementing the
// trailing decimal suffix ("/dev/ttyUSB0" becomes "/dev/ttyUSB1"). A name with no
// numeric suffix is given the suffix 0.
func NextPortName(port string) string {
	i := len(port)
	for i > 0 && port[i-1] >= '0' && port[i-1] <= '9' {
		i--
	}
	if i == len(port) {
		return port + "0"
	}
	n, err := strconv.Atoi(port[i:])
	if err != nil {
		return port + "0"
	}
	return port[:i] + strconv.Itoa(n+1)
}
