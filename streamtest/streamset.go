package streamtest

import (
	"fmt"

	"github.com/vbendeb/opentitan/usbstream"
)

// OpenStreams opens every stream in ascending index order, announcing each one's
// transport on the console. On any failure the already-opened streams are stopped in
// reverse order and the caller gets an OpenError; a partially-opened set never
// escapes.
func OpenStreams(ctx StreamTestContext, specs []StreamSpec, perStream uint32) ([]usbstream.Stream, error) {
	streams := make([]usbstream.Stream, 0, len(specs))
	for _, spec := range specs {
		fmt.Fprintf(ctx.Output, "S%d: %s\n", spec.Index, spec.Type)
		s, err := ctx.Factory.OpenStream(spec.Index, spec.Type, usbstream.StreamTransferBytes(perStream))
		if err != nil {
			for i := len(streams) - 1; i >= 0; i-- {
				if stopErr := streams[i].Stop(); stopErr != nil {
					ctx.Logger.Printf("stopping stream %d during rollback: %v", specs[i].Index, stopErr)
				}
			}
			return nil, OpenError{Index: spec.Index, Type: spec.Type, Err: err}
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// StopAll stops every stream in ascending order. Stop failures are logged and do not
// keep the remaining streams from being stopped.
func StopAll(ctx StreamTestContext, streams []usbstream.Stream) {
	for i, s := range streams {
		if err := s.Stop(); err != nil {
			ctx.Logger.Printf("stopping stream %d: %v", i, err)
		}
	}
}
