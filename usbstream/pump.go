package usbstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/vbendeb/opentitan/framework/helpers"
)

// ioPumps runs a transport's blocking endpoint I/O on two goroutines and exchanges
// buffers with Service over channels, so Service itself never blocks. Pausing cancels
// the in-flight transfer (the kernel will not let the device suspend while transfers
// are pending) and keeps any partial data; the pumps park until resumed.
type ioPumps struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	recvCh chan []byte
	sendCh chan []byte
	sentCh chan int
	errCh  chan error

	mu          sync.Mutex
	cond        *sync.Cond
	paused      bool
	stopped     bool
	pauseCtx    context.Context
	pauseCancel context.CancelFunc
}

func newIOPumps(depth int) *ioPumps {
	p := &ioPumps{
		recvCh: make(chan []byte, depth),
		sendCh: make(chan []byte, depth),
		sentCh: make(chan int, depth),
		errCh:  make(chan error, 1),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *ioPumps) start(
	read func(context.Context) ([]byte, error),
	write func(context.Context, []byte) (int, error),
) {
	if read != nil {
		p.wg.Add(1)
		go p.readLoop(read)
	}
	if write != nil {
		p.wg.Add(1)
		go p.writeLoop(write)
	}
}

func (p *ioPumps) readLoop(read func(context.Context) ([]byte, error)) {
	defer p.wg.Done()
	for {
		runCtx, ok := p.runContext()
		if !ok {
			return
		}
		chunk, err := read(runCtx)
		if len(chunk) > 0 {
			select {
			case p.recvCh <- chunk:
			case <-p.ctx.Done():
				return
			}
		}
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			if runCtx.Err() != nil {
				continue // the transfer was interrupted by Pause; park and retry
			}
			helpers.NonBlockingSend(p.errCh, err)
			return
		}
	}
}

func (p *ioPumps) writeLoop(write func(context.Context, []byte) (int, error)) {
	defer p.wg.Done()
	var carry []byte
	for {
		runCtx, ok := p.runContext()
		if !ok {
			return
		}
		chunk := carry
		carry = nil
		if chunk == nil {
			select {
			case chunk = <-p.sendCh:
			case <-runCtx.Done():
				if p.ctx.Err() != nil {
					return
				}
				continue
			}
		}
		n, err := write(runCtx, chunk)
		if n > 0 {
			select {
			case p.sentCh <- n:
			case <-p.ctx.Done():
				return
			}
			chunk = chunk[n:]
		}
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			if runCtx.Err() != nil {
				carry = chunk // finish the interrupted buffer after Resume
				continue
			}
			helpers.NonBlockingSend(p.errCh, err)
			return
		}
		if len(chunk) > 0 {
			carry = chunk
		}
	}
}

// runContext parks the calling pump while paused, then hands it a context that will be
// cancelled by the next Pause. The second return value is false once the pumps are
// stopped for good.
func (p *ioPumps) runContext() (context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.paused && !p.stopped {
		p.cond.Wait()
	}
	if p.stopped {
		return nil, false
	}
	if p.pauseCtx == nil || p.pauseCtx.Err() != nil {
		p.pauseCtx, p.pauseCancel = context.WithCancel(p.ctx)
	}
	return p.pauseCtx, true
}

func (p *ioPumps) pause() {
	p.mu.Lock()
	p.paused = true
	cancel := p.pauseCancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *ioPumps) resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *ioPumps) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.cancel()
	p.wg.Wait()
}

// pumpStream is the bookkeeping shared by the transports that exchange data with
// ioPumps goroutines. The embedding transport supplies the absorb function so it can
// apply its own framing.
type pumpStream struct {
	streamBase
	pumps        *ioPumps
	pendingWrite []byte
}

func (s *pumpStream) servicePumps(absorb func([]byte) error) error {
	if s.stopped {
		return nil
	}
	if maybeErr := helpers.NonBlockingReceive(s.pumps.errCh); maybeErr.IsDefined() {
		return fmt.Errorf("stream %d: %w", s.index, maybeErr.Value())
	}
	for {
		sent := helpers.NonBlockingReceive(s.pumps.sentCh)
		if !sent.IsDefined() {
			break
		}
		s.noteSent(sent.Value())
	}
	for {
		chunk := helpers.NonBlockingReceive(s.pumps.recvCh)
		if !chunk.IsDefined() {
			break
		}
		if err := absorb(chunk.Value()); err != nil {
			return err
		}
	}
	if len(s.pendingWrite) == 0 {
		buf := make([]byte, s.cfg.ChunkSize)
		if n := s.fill(buf); n > 0 {
			s.pendingWrite = buf[:n]
		}
	}
	if len(s.pendingWrite) > 0 && helpers.NonBlockingSend(s.pumps.sendCh, s.pendingWrite) {
		s.pendingWrite = nil
	}
	return nil
}

func (s *pumpStream) Pause() {
	s.streamBase.Pause()
	s.pumps.pause()
}

func (s *pumpStream) Resume() {
	s.streamBase.Resume()
	s.pumps.resume()
}

func (s *pumpStream) stopPumps() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.pumps.stop()
}
