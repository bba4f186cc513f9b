// Package spiconn exposes an emulated SPI peripheral as a periph.io SPI
// port, so host side drivers can talk to it like to real hardware.
package spiconn

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var (
	ErrorUnsupportedMode = errors.New("unsupported SPI mode")
	ErrorUnsupportedBits = errors.New("only 8 bits per word are supported")
	ErrorClosed          = errors.New("port is closed")
)

// DefaultMaxTxSize is the transaction limit reported to drivers.
const DefaultMaxTxSize = 4096

// Peripheral is the device side of the bus: one byte in, one byte out,
// and a notification when chip select is released.
type Peripheral interface {
	Transmit(data byte) byte
	FinishTransmission()
}

// Port is an spi.PortCloser driving a Peripheral. Transactions from
// multiple goroutines are serialised.
type Port struct {
	name string
	dev  Peripheral
	log  *slog.Logger

	mu        sync.Mutex
	limit     physic.Frequency
	maxTxSize int
	closed    bool
}

func NewPort(name string, dev Peripheral) *Port {
	return &Port{
		name:      name,
		dev:       dev,
		log:       slog.Default().With("port", name),
		maxTxSize: DefaultMaxTxSize,
	}
}

// SetLogger replaces the logger used for transaction traces.
func (p *Port) SetLogger(log *slog.Logger) {
	p.log = log.With("port", p.name)
}

// SetMaxTxSize changes the size reported through conn.Limits.
func (p *Port) SetMaxTxSize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxTxSize = n
}

func (p *Port) String() string {
	return p.name
}

func (p *Port) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits != 8 {
		return nil, fmt.Errorf("%w: %d", ErrorUnsupportedBits, bits)
	}
	if mode&^spi.Mode3 != 0 {
		return nil, fmt.Errorf("%w: 0x%x", ErrorUnsupportedMode, int(mode))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrorClosed
	}
	if p.limit != 0 && (f == 0 || f > p.limit) {
		f = p.limit
	}

	return &devConn{
		port: p,
		freq: f,
		mode: mode,
	}, nil
}

func (p *Port) LimitSpeed(f physic.Frequency) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limit = f
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type devConn struct {
	port *Port
	freq physic.Frequency
	mode spi.Mode
}

func (c *devConn) String() string {
	return fmt.Sprintf("%s(%s, mode %d)", c.port.name, c.freq, int(c.mode))
}

func (c *devConn) Duplex() conn.Duplex {
	return conn.Full
}

func (c *devConn) MaxTxSize() int {
	c.port.mu.Lock()
	defer c.port.mu.Unlock()
	return c.port.maxTxSize
}

func (c *devConn) Tx(w, r []byte) error {
	return c.TxPackets([]spi.Packet{{W: w, R: r}})
}

// TxPackets clocks every packet in order. Chip select is released after
// each packet without KeepCS and always when the call returns.
func (c *devConn) TxPackets(pkts []spi.Packet) error {
	p := c.port

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrorClosed
	}
	for _, pkt := range pkts {
		if pkt.BitsPerWord != 0 && pkt.BitsPerWord != 8 {
			return fmt.Errorf("%w: %d", ErrorUnsupportedBits, pkt.BitsPerWord)
		}
	}

	selected := false
	for _, pkt := range pkts {
		n := max(len(pkt.W), len(pkt.R))
		for i := 0; i < n; i++ {
			var out byte
			if i < len(pkt.W) {
				out = pkt.W[i]
			}
			in := p.dev.Transmit(out)
			if i < len(pkt.R) {
				pkt.R[i] = in
			}
		}
		selected = true

		if !pkt.KeepCS {
			p.dev.FinishTransmission()
			selected = false
		}
		p.log.Debug("Packet transferred", "bytes", n, "keepCS", pkt.KeepCS)
	}

	if selected {
		p.dev.FinishTransmission()
	}

	return nil
}

var _ spi.PortCloser = &Port{}
var _ conn.Limits = &devConn{}
