package spiflash

import "periph.io/x/conn/v3"

// DefaultMaxBytesPerTransaction is used for connections that do not
// report their limits.
const DefaultMaxBytesPerTransaction = 256

// FromConn adapts a periph connection to an SPIFunc: out is clocked first,
// then len(in) filler bytes while the answer is captured.
func FromConn(c conn.Conn) SPIFunc {
	return func(out []byte, in []byte) error {
		buf := make([]byte, len(out)+len(in))
		copy(buf, out)

		if err := c.Tx(buf, buf); err != nil {
			return err
		}

		copy(in, buf[len(out):])
		return nil
	}
}

// NewFromConn probes the flash behind c.
func NewFromConn(c conn.Conn) (*Flash, error) {
	maxBytes := DefaultMaxBytesPerTransaction
	if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 0 {
		maxBytes = l.MaxTxSize()
	}

	return New(FromConn(c), maxBytes)
}
