package usbstream

// LFSR is the 8-bit linear feedback shift register that generates stream payload data.
// The feedback polynomial matches the device-side software so that either end can
// reproduce and verify the sequence produced by the other.
type LFSR byte

// Next returns the current byte of the sequence and advances the register.
func (l *LFSR) Next() byte {
	v := byte(*l)
	*l = LFSR((v << 1) | (((v >> 7) ^ (v >> 5) ^ (v >> 4) ^ (v >> 3)) & 1))
	return v
}

// Value returns the current byte of the sequence without advancing the register.
func (l LFSR) Value() byte {
	return byte(l)
}

// Fill writes the next len(buf) bytes of the sequence into buf.
func (l *LFSR) Fill(buf []byte) {
	for i := range buf {
		buf[i] = l.Next()
	}
}
