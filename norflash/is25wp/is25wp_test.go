package is25wp

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/BertoldVdb/spinor/memory"
	"github.com/BertoldVdb/spinor/norflash"
)

func newTestDevice(t *testing.T, size int64, blockSize BlockSize) (*Device, *memory.Buffer) {
	t.Helper()

	mem, err := memory.New(size)
	if err != nil {
		t.Fatal(err)
	}

	cfg := norflash.DefaultConfig()
	cfg.Name = ""
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	d, err := New(mem, blockSize, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return d, mem
}

func transfer(d *Device, data ...byte) []byte {
	out := make([]byte, len(data))
	for i, v := range data {
		out[i] = d.Transmit(v)
	}
	d.FinishTransmission()
	return out
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		size      int64
		blockSize BlockSize
	}{
		{64 * 1024, Block256K},
		{64 * 1024, Block64K},
		{128 * 1024, Block256K},
		{256 * 1024, BlockSize(7)},
	}

	for _, tc := range tests {
		mem, _ := memory.New(tc.size)
		if _, err := New(mem, tc.blockSize, norflash.DefaultConfig()); err == nil {
			t.Errorf("Size %d with %s blocks accepted", tc.size, tc.blockSize)
		}
	}

	mem, _ := memory.New(256 * 1024)
	if _, err := New(mem, BlockSize(7), norflash.DefaultConfig()); !errors.Is(err, ErrorInvalidBlockSize) {
		t.Error("Unexpected error:", err)
	}
}

func TestReadID(t *testing.T) {
	d, _ := newTestDevice(t, 1024*1024, Block256K)

	out := transfer(d, byte(norflash.CmdReadID), 0, 0, 0)
	if !bytes.Equal(out[1:], []byte{ManufacturerID, MemoryType, 20}) {
		t.Errorf("ID %x", out[1:])
	}
	if d.SectorSize() != SectorSize {
		t.Error("Sector size", d.SectorSize())
	}
}

func TestBlockGeometry(t *testing.T) {
	d, _ := newTestDevice(t, 1024*1024, Block256K)
	if d.BlockCount() != 4 || d.BlockOf(0x3FFFF) != 0 || d.BlockOf(0x40000) != 1 || d.BlockOf(0xFFFFF) != 3 {
		t.Error("Uniform block geometry wrong")
	}

	d, _ = newTestDevice(t, 1024*1024, Block64K)
	if d.BlockCount() != 46 {
		t.Fatal("Block count", d.BlockCount())
	}

	top := []struct {
		addr  int64
		block int
	}{
		{0x00000, 0},
		{0x10000, 1},
		{0xDFFFF, 13},
		{0xE0000, 14},
		{0xE1000, 15},
		{0xFFFFF, 45},
	}
	for _, tc := range top {
		if b := d.BlockOf(tc.addr); b != tc.block {
			t.Errorf("Top: address 0x%x in block %d, expected %d", tc.addr, b, tc.block)
		}
	}

	/* Move the sub-blocks to the bottom through TBPARM */
	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(cmdProgramAdvancedSectorProtection), 0x00, 0x80)
	if out := transfer(d, byte(cmdReadAdvancedSectorProtection), 0, 0); out[2] != 0x80 {
		t.Fatal("TBPARM not written:", out)
	}

	bottom := []struct {
		addr  int64
		block int
	}{
		{0x00000, 0},
		{0x01000, 1},
		{0x1FFFF, 31},
		{0x20000, 32},
		{0x30000, 33},
		{0xFFFFF, 45},
	}
	for _, tc := range bottom {
		if b := d.BlockOf(tc.addr); b != tc.block {
			t.Errorf("Bottom: address 0x%x in block %d, expected %d", tc.addr, b, tc.block)
		}
	}
}

func TestDynamicProtection(t *testing.T) {
	d, mem := newTestDevice(t, 1024*1024, Block256K)
	for i := range mem.Bytes() {
		mem.Bytes()[i] = 0
	}

	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(cmdProgramDYB), 0x04, 0x12, 0x34, 0x00)
	if !d.BlockProtected(1) || d.DYB(1) || d.BlockProtected(0) {
		t.Fatal("DYB write did not protect block 1")
	}
	if out := transfer(d, byte(cmdReadDYB), 0x04, 0x00, 0x00, 0, 0); out[4] != 0x00 || out[5] != 0x00 {
		t.Error("DYB read of protected block", out)
	}
	if out := transfer(d, byte(cmdReadDYB), 0x00, 0x00, 0x00, 0); out[4] != 0xFF {
		t.Error("DYB read of open block", out)
	}
	if out := transfer(d, byte(cmdReadPPB), 0x04, 0x00, 0x00, 0); out[4] != 0xFF {
		t.Error("PPB read", out)
	}

	transfer(d, byte(norflash.CmdWriteEnable))
	out := transfer(d, byte(norflash.CmdPageProgram), 0x03, 0xFF, 0xFF, 0x11, 0x22)
	if out[4] != 0x11 || out[5] != 0x22 {
		t.Error("Program framing changed by protection:", out)
	}
	if mem.Bytes()[0x3FFFF] != 0x11 || mem.Bytes()[0x40000] != 0x00 {
		t.Error("Protected block was programmed")
	}

	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(norflash.CmdSubsectorErase4kb), 0x04, 0x00, 0x00)
	if mem.Bytes()[0x40000] != 0x00 {
		t.Error("Protected block was erased")
	}

	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(norflash.CmdChipErase))
	if mem.Bytes()[0] != 0x00 {
		t.Error("Chip erase ran with a protected block")
	}

	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(norflash.CmdSubsectorErase4kb), 0x00, 0x00, 0x00)
	if mem.Bytes()[0] != 0xFF {
		t.Error("Open block was not erased")
	}

	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(cmdProgramDYB), 0x04, 0x00, 0x00, 0xFF)
	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(norflash.CmdPageProgram), 0x04, 0x00, 0x00, 0x33)
	if mem.Bytes()[0x40000] != 0x33 {
		t.Error("Unprotected block not programmable")
	}

	/* DYB needs the latch like any register write */
	transfer(d, byte(cmdProgramDYB), 0x04, 0x00, 0x00, 0x00)
	if d.BlockProtected(1) {
		t.Error("DYB written without latch")
	}
}

func TestPersistentProtection(t *testing.T) {
	d, _ := newTestDevice(t, 1024*1024, Block256K)

	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(cmdProgramPPB), 0x00, 0x00, 0x00, 0x00)
	if d.BlockProtected(0) {
		t.Fatal("PPB written without lock bit")
	}

	transfer(d, byte(cmdWritePPBLock))
	if out := transfer(d, byte(cmdReadPPBLock), 0); out[1] != ppbLockBit {
		t.Error("Lock register", out)
	}

	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(cmdProgramPPB), 0x00, 0x00, 0x00, 0x00)
	if !d.BlockProtected(0) || d.PPB(0) {
		t.Fatal("PPB write lost")
	}

	transfer(d, byte(cmdErasePPB))
	if d.PPB(0) {
		t.Error("PPB erase ran while locked")
	}

	d.Reset()
	if !d.BlockProtected(0) {
		t.Error("PPB did not survive reset")
	}
	if out := transfer(d, byte(cmdReadPPBLock), 0); out[1] != 0 {
		t.Error("Lock bit survived reset")
	}

	transfer(d, byte(cmdErasePPB))
	if d.BlockProtected(0) {
		t.Error("PPB erase did not clear protection")
	}

	transfer(d, byte(cmdSetFreezeBit))
	if out := transfer(d, byte(cmdReadPPBLock), 0); out[1] != freezeBit {
		t.Error("Freeze bit", out)
	}
}

func TestBankAddress(t *testing.T) {
	d, mem := newTestDevice(t, 32*1024*1024, Block256K)
	mem.Bytes()[0x1000010] = 0xA5

	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(cmdWriteBankAddressVolatile), 0x7D)
	if out := transfer(d, byte(cmdReadBankAddress), 0); out[1] != 0x01 {
		t.Errorf("Bank register reads 0x%02x", out[1])
	}

	if out := transfer(d, byte(norflash.CmdRead), 0x00, 0x00, 0x10, 0); out[4] != 0xA5 {
		t.Error("BA24 not applied to 3-byte read")
	}
	if out := transfer(d, byte(norflash.CmdRead4byte), 0x00, 0x00, 0x00, 0x10, 0); out[5] != 0xFF {
		t.Error("BA24 applied to 4-byte read")
	}

	/* EXTADD switches protection commands to 4-byte addresses */
	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(cmdWriteBankAddressNonVolatile), bankExtended)
	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(cmdProgramDYB), 0x01, 0x00, 0x00, 0x00, 0x00)
	if !d.BlockProtected(d.BlockOf(0x1000000)) {
		t.Error("4-byte DYB address not honoured")
	}
}

func TestASPAndPassword(t *testing.T) {
	d, _ := newTestDevice(t, 256*1024, Block256K)

	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, byte(cmdProgramAdvancedSectorProtection), 0xFF, 0xFF)
	out := transfer(d, byte(cmdReadAdvancedSectorProtection), 0, 0, 0)
	if !bytes.Equal(out[1:], []byte{0x06, 0x00, 0x00}) {
		t.Errorf("ASP reads %x", out[1:])
	}

	password := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	transfer(d, byte(norflash.CmdWriteEnable))
	transfer(d, append([]byte{byte(cmdProgramPassword)}, password...)...)
	out = transfer(d, byte(cmdReadPassword), 0, 0, 0, 0, 0, 0, 0, 0, 0)
	if !bytes.Equal(out[1:9], password) || out[9] != 0 {
		t.Errorf("Password reads %x", out[1:])
	}

	d.Transmit(byte(cmdUnlockPassword))
	if op := d.Operation(); op.State != norflash.StateRecognizeOperation {
		t.Error("Unlock left the interpreter in", op.State)
	}
	d.FinishTransmission()
}
