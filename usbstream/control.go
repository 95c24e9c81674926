package usbstream

import (
	"fmt"

	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/framework/helpers"
)

// ControlConn is the slice of the device handle that a control stream drives: vendor
// requests addressed to the device's default control pipe.
type ControlConn interface {
	VendorRead(request uint8, value, index uint16, data []byte) (int, error)
	VendorWrite(request uint8, value, index uint16, data []byte) (int, error)
}

// maxControlChunk bounds a single control transfer's payload. Control traffic shares
// the default pipe with enumeration, so transfers are kept small.
const maxControlChunk = 0x40

// ControlStream carries a stream over the default control pipe using the vendor
// stream requests, with the stream index in wIndex. Control transfers are synchronous
// and short, so each Service moves at most one transfer in each direction.
type ControlStream struct {
	streamBase
	conn     ControlConn
	readBuf  []byte
	writeBuf []byte
}

func OpenControlStream(index int, conn ControlConn, cfg StreamConfig, options ...StreamOption) (*ControlStream, error) {
	cfg = cfg.withDefaults()
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return nil, err
	}
	if cfg.ChunkSize > maxControlChunk {
		cfg.ChunkSize = maxControlChunk
	}
	s := &ControlStream{
		streamBase: newStreamBase(index, cfg),
		conn:       conn,
	}
	s.readBuf = make([]byte, cfg.ChunkSize)
	return s, nil
}

func (s *ControlStream) Service() error {
	if s.stopped || s.paused {
		return nil
	}

	n, err := s.conn.VendorRead(devicedef.VendorStreamIn, 0, uint16(s.index), s.readBuf)
	if err != nil {
		return fmt.Errorf("stream %d: control read: %w", s.index, err)
	}
	if n > 0 {
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
		w, err := s.conn.VendorWrite(devicedef.VendorStreamOut, 0, uint16(s.index), s.writeBuf)
		if err != nil {
			return fmt.Errorf("stream %d: control write: %w", s.index, err)
		}
		s.noteSent(w)
		s.writeBuf = s.writeBuf[w:]
	}
	return nil
}

func (s *ControlStream) Stop() error {
	s.stopped = true
	return nil
}
