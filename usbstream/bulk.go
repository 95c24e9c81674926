package usbstream

import (
	"context"

	"github.com/google/gousb"

	"github.com/vbendeb/opentitan/framework/helpers"
)

// BulkStream drives a stream over a bulk or interrupt endpoint pair. The two transfer
// types have the same data semantics and differ only in how the host schedules them,
// so one transport serves both.
type BulkStream struct {
	pumpStream
}

// OpenBulkStream starts the I/O pumps for the given endpoint pair.
func OpenBulkStream(
	index int,
	in *gousb.InEndpoint,
	out *gousb.OutEndpoint,
	cfg StreamConfig,
	options ...StreamOption,
) (*BulkStream, error) {
	cfg = cfg.withDefaults()
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return nil, err
	}
	s := &BulkStream{
		pumpStream: pumpStream{
			streamBase: newStreamBase(index, cfg),
			pumps:      newIOPumps(cfg.QueueDepth),
		},
	}
	chunkSize := cfg.ChunkSize
	s.pumps.start(
		func(ctx context.Context) ([]byte, error) {
			buf := make([]byte, chunkSize)
			n, err := in.ReadContext(ctx, buf)
			return buf[:n], err
		},
		func(ctx context.Context, data []byte) (int, error) {
			return out.WriteContext(ctx, data)
		},
	)
	return s, nil
}

func (s *BulkStream) Service() error {
	return s.servicePumps(s.absorb)
}

func (s *BulkStream) Stop() error {
	s.stopPumps()
	return nil
}
