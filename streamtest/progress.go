package streamtest

import (
	"fmt"
	"io"

	"github.com/vbendeb/opentitan/usbstream"
)

// ProgressSnapshot aggregates the stream counters for one polling tick. It is
// recomputed from the streams each time, never carried forward.
type ProgressSnapshot struct {
	TotalExpected uint32
	TotalRecvd    uint32
	TotalSent     uint32

	// Done is true when every stream has completed.
	Done bool
}

// SnapshotStreams sums the counters over the stream set. An empty set counts as done.
func SnapshotStreams(streams []usbstream.Stream) ProgressSnapshot {
	snap := ProgressSnapshot{Done: true}
	for _, s := range streams {
		snap.TotalExpected += s.TransferBytes()
		snap.TotalRecvd += s.BytesRecvd()
		snap.TotalSent += s.BytesSent()
		if !s.Completed() {
			snap.Done = false
		}
	}
	return snap
}

// BytesLeft is how much of the expected total has not been sent back yet, clamped at
// zero since an isochronous run can complete short of the target.
func (p ProgressSnapshot) BytesLeft() uint32 {
	if p.TotalSent < p.TotalExpected {
		return p.TotalExpected - p.TotalSent
	}
	return 0
}

// progressReporter rewrites a single console status line in place. A report happens
// when enough new data has moved since the last one, or when the run completes.
type progressReporter struct {
	out       io.Writer
	threshold uint32
	last      uint32
}

func newProgressReporter(out io.Writer, threshold uint32) *progressReporter {
	return &progressReporter{out: out, threshold: threshold}
}

func (r *progressReporter) maybeReport(snap ProgressSnapshot) {
	delta := int64(snap.TotalSent) - int64(r.last)
	if delta < 0 {
		delta = -delta
	}
	if delta < int64(r.threshold) && !snap.Done {
		return
	}
	fmt.Fprintf(r.out, "Bytes received: 0x%x -- Left to send: 0x%x         \r",
		snap.TotalRecvd, snap.BytesLeft())
	r.last = snap.TotalSent
}
