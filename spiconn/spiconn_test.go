package spiconn

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/BertoldVdb/spinor/memory"
	"github.com/BertoldVdb/spinor/norflash"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// shifter returns every byte one transfer late and records deselects.
type shifter struct {
	last     byte
	received []byte
	finished int
}

func (s *shifter) Transmit(data byte) byte {
	out := s.last
	s.last = data
	s.received = append(s.received, data)
	return out
}

func (s *shifter) FinishTransmission() {
	s.finished++
	s.last = 0
}

func TestConnect(t *testing.T) {
	p := NewPort("test", &shifter{})

	if _, err := p.Connect(physic.MegaHertz, spi.Mode0, 9); !errors.Is(err, ErrorUnsupportedBits) {
		t.Error("9 bit words accepted:", err)
	}
	for _, mode := range []spi.Mode{spi.LSBFirst, spi.NoCS, spi.HalfDuplex} {
		if _, err := p.Connect(physic.MegaHertz, mode, 8); !errors.Is(err, ErrorUnsupportedMode) {
			t.Errorf("Mode 0x%x accepted: %v", int(mode), err)
		}
	}
	for _, mode := range []spi.Mode{spi.Mode0, spi.Mode1, spi.Mode2, spi.Mode3} {
		c, err := p.Connect(physic.MegaHertz, mode, 8)
		if err != nil {
			t.Fatal(err)
		}
		if c.Duplex() != conn.Full {
			t.Error("Connection is not full duplex")
		}
	}

	if err := p.LimitSpeed(physic.KiloHertz); err != nil {
		t.Fatal(err)
	}
	c, _ := p.Connect(physic.MegaHertz, spi.Mode0, 8)
	if c.(*devConn).freq != physic.KiloHertz {
		t.Error("Speed limit not applied")
	}
	if l, ok := c.(conn.Limits); !ok || l.MaxTxSize() != DefaultMaxTxSize {
		t.Error("Limits not reported")
	}

	p.Close()
	if _, err := p.Connect(physic.MegaHertz, spi.Mode0, 8); err != ErrorClosed {
		t.Error("Connect on closed port:", err)
	}
	if err := c.Tx([]byte{1}, nil); err != ErrorClosed {
		t.Error("Tx on closed port:", err)
	}
}

func TestTx(t *testing.T) {
	s := &shifter{}
	c, err := NewPort("test", s).Connect(0, spi.Mode0, 8)
	if err != nil {
		t.Fatal(err)
	}

	r := make([]byte, 5)
	if err := c.Tx([]byte{1, 2, 3}, r); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r, []byte{0, 1, 2, 3, 0}) {
		t.Errorf("Read %x", r)
	}
	if !bytes.Equal(s.received, []byte{1, 2, 3, 0, 0}) {
		t.Errorf("Peripheral received %x", s.received)
	}
	if s.finished != 1 {
		t.Error("Chip select not released once:", s.finished)
	}
}

func TestTxPacketsKeepCS(t *testing.T) {
	s := &shifter{}
	c, _ := NewPort("test", s).Connect(0, spi.Mode0, 8)

	r := make([]byte, 2)
	err := c.TxPackets([]spi.Packet{
		{W: []byte{0xAA}, KeepCS: true},
		{W: []byte{0xBB, 0xCC}, R: r, KeepCS: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r, []byte{0xAA, 0xBB}) {
		t.Errorf("Chip select dropped between packets: %x", r)
	}
	if s.finished != 1 {
		t.Error("Chip select not released at the end:", s.finished)
	}

	err = c.TxPackets([]spi.Packet{{W: []byte{1}}, {W: []byte{2}, BitsPerWord: 16}})
	if !errors.Is(err, ErrorUnsupportedBits) || len(s.received) != 3 {
		t.Error("Invalid packet not rejected up front:", err)
	}
}

func TestFlashOverPort(t *testing.T) {
	mem, _ := memory.New(64 * 1024)
	cfg := norflash.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	f, err := norflash.New(mem, cfg)
	if err != nil {
		t.Fatal(err)
	}

	c, _ := NewPort("flash", f).Connect(physic.MegaHertz, spi.Mode0, 8)

	buf := []byte{byte(norflash.CmdReadID), 0, 0, 0}
	if err := c.Tx(buf, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[1:], []byte{0x20, 0xBA, 0x10}) {
		t.Errorf("ID over port %x", buf[1:])
	}

	/* Concurrent users must not interleave inside a transaction */
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				buf := []byte{byte(norflash.CmdReadID), 0, 0, 0}
				if err := c.Tx(buf, buf); err != nil {
					t.Error(err)
					return
				}
				if buf[1] != 0x20 || buf[2] != 0xBA {
					t.Errorf("Interleaved transaction: %x", buf)
					return
				}
			}
		}()
	}
	wg.Wait()
}
