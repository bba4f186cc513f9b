package flashtasks

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/BertoldVdb/spinor/image"
	"github.com/BertoldVdb/spinor/memory"
	"github.com/BertoldVdb/spinor/norflash"
	"github.com/BertoldVdb/spinor/spiconn"
	"periph.io/x/conn/v3/spi"
)

func newTestTasks(t *testing.T) (*Tasks, *norflash.Flash, *memory.Buffer) {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	mem, _ := memory.New(64 * 1024)
	cfg := norflash.DefaultConfig()
	cfg.Logger = quiet
	dev, err := norflash.New(mem, cfg)
	if err != nil {
		t.Fatal(err)
	}

	port := spiconn.NewPort("tasks", dev)
	port.SetLogger(quiet)
	c, err := port.Connect(0, spi.Mode0, 8)
	if err != nil {
		t.Fatal(err)
	}

	tasks, err := NewFromConn(c)
	if err != nil {
		t.Fatal(err)
	}
	tasks.SetLogger(quiet)
	return tasks, dev, mem
}

func pattern(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i) ^ seed
	}
	return data
}

func TestImageWriteRead(t *testing.T) {
	tasks, _, mem := newTestTasks(t)
	mem.Bytes()[0xF000] = 0

	content := pattern(0x2345, 0x5A)
	if err := tasks.ImageWrite(content, true); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(mem.Bytes()[:len(content)], content) || mem.Bytes()[0xF000] != 0xFF {
		t.Error("Memory does not hold the image")
	}

	dump, err := tasks.ImageRead()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dump, mem.Bytes()) {
		t.Error("Dump does not match memory")
	}

	if err := tasks.ImageWrite(make([]byte, 64*1024+1), false); !errors.Is(err, ErrorTooLarge) {
		t.Error("Oversized image:", err)
	}
}

func TestProgramKeepsNeighbours(t *testing.T) {
	tasks, _, mem := newTestTasks(t)
	copy(mem.Bytes(), pattern(len(mem.Bytes()), 0x11))
	before := append([]byte(nil), mem.Bytes()...)

	data := pattern(0x1800, 0xC3)
	if err := tasks.Program(0x1F00, data, true); err != nil {
		t.Fatal(err)
	}

	copy(before[0x1F00:], data)
	if !bytes.Equal(mem.Bytes(), before) {
		t.Error("Program changed bytes outside the region")
	}

	if err := tasks.Program(0xFFF0, make([]byte, 0x20), false); !errors.Is(err, ErrorTooLarge) {
		t.Error("Region past the end:", err)
	}
}

func TestVerifyFailure(t *testing.T) {
	tasks, dev, _ := newTestTasks(t)
	dev.SetLockedRange(norflash.Range{Start: 0x1000, Size: 0x1000})

	err := tasks.ImageWrite(pattern(0x2000, 0), true)
	if !errors.Is(err, ErrorVerify) {
		t.Fatal("Write into locked range verified:", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	tasks, _, mem := newTestTasks(t)
	copy(mem.Bytes(), pattern(0x3000, 0x77))

	img, err := tasks.Snapshot(0xFF)
	if err != nil {
		t.Fatal(err)
	}
	if _, erased, err := image.Extract(img); err != nil || erased != 0xFF {
		t.Error("Snapshot header erased value:", erased, err)
	}
	saved := append([]byte(nil), mem.Bytes()...)

	if err := tasks.Erase(); err != nil {
		t.Fatal(err)
	}
	if mem.Bytes()[1] != 0xFF {
		t.Fatal("Chip not erased")
	}

	if err := tasks.Restore(img, true); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(mem.Bytes(), saved) {
		t.Error("Restore did not bring back the contents")
	}

	img[40]++
	if err := tasks.Restore(img, false); err == nil {
		t.Error("Corrupt snapshot accepted")
	}
}

func TestSnapshotErasedValue(t *testing.T) {
	tasks, _, _ := newTestTasks(t)

	img, err := tasks.Snapshot(0x00)
	if err != nil {
		t.Fatal(err)
	}
	if _, erased, err := image.Extract(img); err != nil || erased != 0x00 {
		t.Error("Snapshot header erased value:", erased, err)
	}
}
