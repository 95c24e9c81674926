package usbstream

import (
	"fmt"

	"github.com/google/gousb"

	"github.com/vbendeb/opentitan/devicedef"
)

// DeviceConn is the slice of the device handle the stream factory needs: endpoint
// lookup on the claimed interface, plus vendor requests on the default control pipe.
type DeviceConn interface {
	InEndpoint(number int) (*gousb.InEndpoint, error)
	OutEndpoint(number int) (*gousb.OutEndpoint, error)
	ControlConn
}

// Factory opens streams of each transfer type against one device connection. Streams
// with the Serial transfer type ride host-side CDC ports instead of raw endpoints; the
// factory hands out consecutive port names starting from the configured pair.
type Factory struct {
	conn    DeviceConn
	cfg     StreamConfig
	options []StreamOption

	inPort  string
	outPort string
}

// NewFactory returns a factory opening streams over conn. The port names name the CDC
// ports of the first serial stream; they may be empty when the run uses none.
func NewFactory(conn DeviceConn, inPort, outPort string, cfg StreamConfig, options ...StreamOption) *Factory {
	return &Factory{
		conn:    conn,
		cfg:     cfg,
		options: options,
		inPort:  inPort,
		outPort: outPort,
	}
}

// Supports reports whether OpenStream can open a stream of the given transfer type.
func (f *Factory) Supports(t devicedef.TransferType) bool {
	switch t {
	case devicedef.TransferTypeControl, devicedef.TransferTypeIsochronous,
		devicedef.TransferTypeBulk, devicedef.TransferTypeInterrupt:
		return f.conn != nil
	case devicedef.TransferTypeSerial:
		return f.inPort != "" && f.outPort != ""
	default:
		return false
	}
}

// Endpoint numbers follow the device's layout: stream index n uses endpoint n+1 in
// both directions, leaving endpoint 0 as the default control pipe.
func endpointNumber(index int) int {
	return index + 1
}

// OpenStream opens the stream at index over the transport matching its transfer type.
// Options given here are applied after the factory's own, so callers can set the
// per-stream transfer amount once the stream count is known.
func (f *Factory) OpenStream(index int, t devicedef.TransferType, options ...StreamOption) (Stream, error) {
	opts := append(append([]StreamOption(nil), f.options...), options...)
	switch t {
	case devicedef.TransferTypeControl:
		return OpenControlStream(index, f.conn, f.cfg, opts...)
	case devicedef.TransferTypeBulk, devicedef.TransferTypeInterrupt:
		in, out, err := f.endpoints(index)
		if err != nil {
			return nil, err
		}
		return OpenBulkStream(index, in, out, f.cfg, opts...)
	case devicedef.TransferTypeIsochronous:
		in, out, err := f.endpoints(index)
		if err != nil {
			return nil, err
		}
		return OpenIsoStream(index, in, out, f.cfg, opts...)
	case devicedef.TransferTypeSerial:
		inPort, outPort := f.nextSerialPorts()
		return OpenSerialStream(index, inPort, outPort, f.cfg, opts...)
	default:
		return nil, fmt.Errorf("stream %d: unsupported transfer type %s", index, t)
	}
}

func (f *Factory) endpoints(index int) (*gousb.InEndpoint, *gousb.OutEndpoint, error) {
	num := endpointNumber(index)
	in, err := f.conn.InEndpoint(num)
	if err != nil {
		return nil, nil, fmt.Errorf("stream %d: IN endpoint %d: %w", index, num, err)
	}
	out, err := f.conn.OutEndpoint(num)
	if err != nil {
		return nil, nil, fmt.Errorf("stream %d: OUT endpoint %d: %w", index, num, err)
	}
	return in, out, nil
}

// nextSerialPorts returns the port pair for the next serial stream and advances the
// cursor, so a test with several serial streams lands on consecutive ports.
func (f *Factory) nextSerialPorts() (string, string) {
	in, out := f.inPort, f.outPort
	f.inPort = NextPortName(f.inPort)
	f.outPort = NextPortName(f.outPort)
	return in, out
}
