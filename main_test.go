package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BertoldVdb/spinor/config"
)

func TestParseNumber(t *testing.T) {
	if n, err := parseNumber("0x1000"); err != nil || n != 0x1000 {
		t.Error("Hex address:", n, err)
	}
	if n, err := parseNumber("4K"); err != nil || n != 4096 {
		t.Error("Suffixed length:", n, err)
	}
	if n, err := parseNumber("0x1B"); err != nil || n != 0x1B {
		t.Error("Hex address ending in B:", n, err)
	}
	if _, err := parseNumber("8G"); !errors.Is(err, errorUsage) {
		t.Error("Oversized number:", err)
	}
}

func TestRunProgramAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	payload := []byte("bootloader")
	input := filepath.Join(dir, "payload.bin")
	snapshot := filepath.Join(dir, "flash.norf")
	dump := filepath.Join(dir, "dump.bin")
	if err := os.WriteFile(input, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	device, err := config.Parse([]byte("size: 64K\n"))
	if err != nil {
		t.Fatal(err)
	}

	if err := run(log, device, "", snapshot, []string{"program", "0x2000", input}); err != nil {
		t.Fatal(err)
	}

	/* A fresh device starts erased, the snapshot brings the payload back */
	if err := run(log, device, snapshot, "", []string{"dump", dump}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dump)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 64*1024 || !bytes.Equal(data[0x2000:0x2000+len(payload)], payload) || data[0] != 0xFF {
		t.Error("Dump does not contain the programmed payload")
	}

	if err := run(log, device, "", "", []string{"frobnicate"}); !errors.Is(err, errorUsage) {
		t.Error("Unknown command:", err)
	}
}

func TestRunBacking(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	device, err := loadDevice("", filepath.Join(dir, "flash.bin"))
	if err != nil {
		t.Fatal(err)
	}
	device.Size = 64 * 1024

	if err := run(log, device, "", "", []string{"erase"}); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(device.Backing); err != nil || fi.Size() != 64*1024 {
		t.Error("Backing file:", err)
	}
}

func TestRunMainExitCodes(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "spinor.log")
	backing := filepath.Join(dir, "flash.bin")

	code := runMain([]string{"spinor", "-L", logFile, "-i", backing, "frobnicate"})
	if code != 2 {
		t.Error("Unknown command exit code", code)
	}

	data, err := os.ReadFile(logFile)
	if err != nil || !strings.Contains(string(data), "ERROR: invalid arguments") {
		t.Errorf("Log file holds %q: %v", data, err)
	}
	if fi, err := os.Stat(backing); err != nil || fi.Size() != 16*1024*1024 {
		t.Error("Backing file:", err)
	}

	if code := runMain([]string{"spinor", "-i", backing, "erase"}); code != 0 {
		t.Error("Erase exit code", code)
	}
	if code := runMain([]string{"spinor", "-c", filepath.Join(dir, "missing.yaml"), "id"}); code != 1 {
		t.Error("Missing config exit code", code)
	}
	if code := runMain([]string{"spinor", "--bogus"}); code != 2 {
		t.Error("Unknown flag exit code", code)
	}
}
