// Package config describes emulated flash devices in YAML.
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BertoldVdb/spinor/memory"
	"github.com/BertoldVdb/spinor/norflash"
	"github.com/BertoldVdb/spinor/norflash/is25wp"
	"gopkg.in/yaml.v3"
)

var (
	ErrorUnknownModel = errors.New("unknown flash model")
	ErrorMissingSize  = errors.New("device size not configured")
	ErrorInvalidSize  = errors.New("invalid size")
)

const (
	ModelGeneric = "generic"
	ModelMT25Q   = "mt25q"
	ModelIS25WP  = "is25wp"
)

// Size is a byte count that accepts K, M and G suffixes (powers of 1024).
type Size int64

func hasMultiplier(s string) bool {
	return strings.HasSuffix(s, "K") || strings.HasSuffix(s, "M") || strings.HasSuffix(s, "G")
}

func ParseSize(s string) (Size, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	/* B is a hex digit, it is only a unit after a multiplier */
	for _, unit := range []string{"IB", "B"} {
		if t := strings.TrimSuffix(s, unit); t != s && hasMultiplier(t) {
			s = t
			break
		}
	}

	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrorInvalidSize, s)
	}
	return Size(n * mult), nil
}

func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*s = Size(n)
		return nil
	}

	parsed, err := ParseSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = parsed
	return nil
}

// HexBytes accepts either a list of numbers or a hex string, spaces allowed.
type HexBytes []byte

func (h *HexBytes) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var list []uint8
		if err := value.Decode(&list); err != nil {
			return err
		}
		*h = list
		return nil
	}

	b, err := hex.DecodeString(strings.Join(strings.Fields(value.Value), ""))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*h = b
	return nil
}

type Range struct {
	Start Size `yaml:"start"`
	Size  Size `yaml:"size"`
}

// Device is one flash chip.
type Device struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model"`
	Size  Size   `yaml:"size"`

	// Backing maps the memory onto a file instead of the heap.
	Backing     string `yaml:"backing"`
	ErasedValue *uint8 `yaml:"erased-value"`

	ManufacturerID      *uint8 `yaml:"manufacturer-id"`
	MemoryType          *uint8 `yaml:"memory-type"`
	CapacityCode        uint8  `yaml:"capacity-code"`
	ExtendedDeviceID    *uint8 `yaml:"extended-device-id"`
	DeviceConfiguration *uint8 `yaml:"device-configuration"`

	SectorSize                Size          `yaml:"sector-size"`
	StatusWriteEnableReadOnly bool          `yaml:"status-write-enable-readonly"`
	SFDP                      HexBytes      `yaml:"sfdp"`
	DummyBytes                map[uint8]int `yaml:"dummy-bytes"`
	Locked                    *Range        `yaml:"locked"`

	// BlockSize selects the IS25WP protection layout, 64K or 256K.
	BlockSize Size `yaml:"block-size"`
}

func Parse(data []byte) (*Device, error) {
	d := &Device{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(d); err != nil {
		return nil, err
	}

	if d.Model == "" {
		d.Model = ModelMT25Q
	}
	d.Model = strings.ToLower(d.Model)
	switch d.Model {
	case ModelGeneric, ModelMT25Q, ModelIS25WP:
	default:
		return nil, fmt.Errorf("%w: %s", ErrorUnknownModel, d.Model)
	}

	if d.Size == 0 {
		return nil, ErrorMissingSize
	}
	if !memory.IsPowerOfTwo(int64(d.Size)) {
		return nil, fmt.Errorf("%w: %d", memory.ErrorInvalidSize, d.Size)
	}

	return d, nil
}

func Load(path string) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Open creates the backing store of the device.
func (d *Device) Open() (memory.Store, error) {
	var store memory.Store
	if d.Backing != "" {
		m, err := memory.OpenFile(d.Backing, int64(d.Size))
		if err != nil {
			return nil, err
		}
		store = m
	} else {
		b, err := memory.New(int64(d.Size))
		if err != nil {
			return nil, err
		}
		store = b
	}

	if d.ErasedValue != nil {
		store.SetErasedValue(*d.ErasedValue)
	}
	return store, nil
}

func (d *Device) flashConfig(logger *slog.Logger) norflash.Config {
	cfg := norflash.DefaultConfig()
	if d.Name != "" {
		cfg.Name = d.Name
	}
	cfg.Logger = logger

	set := func(dst *byte, src *uint8) {
		if src != nil {
			*dst = *src
		}
	}
	set(&cfg.ManufacturerID, d.ManufacturerID)
	set(&cfg.MemoryType, d.MemoryType)
	set(&cfg.ExtendedDeviceID, d.ExtendedDeviceID)
	set(&cfg.DeviceConfiguration, d.DeviceConfiguration)
	cfg.CapacityCode = d.CapacityCode

	if d.SectorSize != 0 {
		cfg.SectorSize = int64(d.SectorSize)
	}
	cfg.StatusWriteEnableReadOnly = d.StatusWriteEnableReadOnly
	if len(d.SFDP) > 0 {
		cfg.SFDP = d.SFDP
	}

	if len(d.DummyBytes) > 0 {
		cfg.DummyBytes = make(map[norflash.Command]int, len(d.DummyBytes))
		for opcode, n := range d.DummyBytes {
			cfg.DummyBytes[norflash.Command(opcode)] = n
		}
	}

	return cfg
}

// Build constructs the device on store.
func (d *Device) Build(store memory.Store, logger *slog.Logger) (*norflash.Flash, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := d.flashConfig(logger)

	var f *norflash.Flash
	switch d.Model {
	case ModelIS25WP:
		blockSize := is25wp.Block256K
		switch d.BlockSize {
		case 0, 256 * 1024:
		case 64 * 1024:
			blockSize = is25wp.Block64K
		default:
			return nil, fmt.Errorf("%w: %d", is25wp.ErrorInvalidBlockSize, d.BlockSize)
		}

		dev, err := is25wp.New(store, blockSize, cfg)
		if err != nil {
			return nil, err
		}
		f = dev.Flash

	default:
		var err error
		if f, err = norflash.New(store, cfg); err != nil {
			return nil, err
		}
	}

	if d.Locked != nil {
		f.SetLockedRange(norflash.Range{Start: int64(d.Locked.Start), Size: int64(d.Locked.Size)})
	}

	return f, nil
}
