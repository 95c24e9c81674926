package usbstream

import (
	"context"
	"fmt"

	"github.com/google/gousb"

	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/framework/helpers"
)

// IsoStream drives a stream over an isochronous endpoint pair. Delivery is not
// guaranteed, so the device precedes every transmission attempt with a signature that
// reseeds the data sequences and carries the number of bytes it still intends to send.
// The stream follows the device's progress through those signatures and may complete
// with fewer bytes received than the transfer amount when packets were lost.
type IsoStream struct {
	pumpStream
	deviceRemaining uint32
}

// OpenIsoStream starts the I/O pumps for the given endpoint pair. IN transfers are
// sized to a single packet so the per-packet signature framing is preserved.
func OpenIsoStream(
	index int,
	in *gousb.InEndpoint,
	out *gousb.OutEndpoint,
	cfg StreamConfig,
	options ...StreamOption,
) (*IsoStream, error) {
	cfg = cfg.withDefaults()
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return nil, err
	}
	packetSize := in.Desc.MaxPacketSize
	if packetSize <= 0 {
		packetSize = cfg.ChunkSize
	}
	s := &IsoStream{
		pumpStream: pumpStream{
			streamBase: newStreamBase(index, cfg),
			pumps:      newIOPumps(cfg.QueueDepth),
		},
	}
	s.pumps.start(
		func(ctx context.Context) ([]byte, error) {
			buf := make([]byte, packetSize)
			n, err := in.ReadContext(ctx, buf)
			return buf[:n], err
		},
		func(ctx context.Context, data []byte) (int, error) {
			return out.WriteContext(ctx, data)
		},
	)
	return s, nil
}

func (s *IsoStream) Service() error {
	return s.servicePumps(s.absorbPacket)
}

// absorbPacket handles the per-packet framing. A packet normally opens with a
// signature; payload without one carries on from the previous packet's sequences.
func (s *IsoStream) absorbPacket(pkt []byte) error {
	if devicedef.HasSignatureHead(pkt) {
		sig, err := devicedef.ParseStreamSignature(pkt)
		if err != nil {
			return fmt.Errorf("stream %d: %w", s.index, err)
		}
		if int(sig.StreamIndex()) != s.index {
			return fmt.Errorf("stream %d: received signature for stream %d", s.index, sig.StreamIndex())
		}
		if !s.seeded {
			// The first signature fixes the stream's total transfer amount.
			s.transferBytes = sig.NumBytes
		}
		s.deviceRemaining = sig.NumBytes
		s.reseed(sig.InitLFSR)
		if s.cfg.Verbose {
			s.logf("signature: init LFSR 0x%02x, 0x%x byte(s) outstanding", sig.InitLFSR, sig.NumBytes)
		}
		pkt = pkt[devicedef.SignatureLength:]
	}
	if len(pkt) == 0 {
		return nil
	}
	if !s.seeded {
		return fmt.Errorf("stream %d: payload received before any signature", s.index)
	}
	if uint32(len(pkt)) > s.deviceRemaining {
		s.deviceRemaining = 0
	} else {
		s.deviceRemaining -= uint32(len(pkt))
	}
	return s.absorbPayload(pkt)
}

func (s *IsoStream) Completed() bool {
	if !s.seeded || s.deviceRemaining > 0 {
		return false
	}
	if s.cfg.Send {
		if s.cfg.Retrieve {
			// The return leg must be drained, but the byte target itself may be
			// undershot when packets were lost.
			if len(s.pending) > 0 || len(s.pendingWrite) > 0 || s.bytesSent < s.bytesQueued {
				return false
			}
		} else if s.bytesSent < s.transferBytes {
			return false
		}
	}
	return true
}

func (s *IsoStream) Stop() error {
	s.stopPumps()
	return nil
}
