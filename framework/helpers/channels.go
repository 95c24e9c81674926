package helpers

import (
	"github.com/vbendeb/opentitan/framework/opt"
)

// NonBlockingSend is a shortcut for using select to do a non-blocking send. It returns
// true on success or false if the channel was full.
func NonBlockingSend[V any](ch chan<- V, value V) bool {
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}

// NonBlockingReceive is a shortcut for using select to do a non-blocking receive. It
// returns a Maybe that has a value if one was immediately available, or no value if the
// channel was empty.
func NonBlockingReceive[V any](ch <-chan V) opt.Maybe[V] {
	select {
	case value := <-ch:
		return opt.Some(value)
	default:
		return opt.None[V]()
	}
}
