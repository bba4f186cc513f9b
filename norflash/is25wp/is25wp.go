// Package is25wp models the ISSI IS25WP family: a norflash device with
// per block write protection, a bank address register and the advanced
// sector protection registers.
package is25wp

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/BertoldVdb/spinor/memory"
	"github.com/BertoldVdb/spinor/norflash"
)

var (
	ErrorInvalidSize      = errors.New("memory size must be a power of 2 and a multiple of 64KiB")
	ErrorInvalidBlockSize = errors.New("invalid block size")
)

type BlockSize int

const (
	Block256K BlockSize = iota
	Block64K
)

func (b BlockSize) String() string {
	switch b {
	case Block256K:
		return "256K"
	case Block64K:
		return "64K"
	}
	return fmt.Sprintf("BlockSize(%d)", int(b))
}

const (
	ManufacturerID = 0x9D
	MemoryType     = 0x70
	SectorSize     = 64 * 1024

	uniformBlockSize = 256 * 1024
	largeBlockSize   = 64 * 1024
	subblockSize     = 4 * 1024
	subblockRegion   = 32 * subblockSize
)

type blockConfiguration struct {
	ppb bool
	dyb bool
}

func (b blockConfiguration) protected() bool {
	return !b.ppb || !b.dyb
}

// Device is a norflash.Flash with the IS25WP protection overlay.
type Device struct {
	*norflash.Flash

	ext *extension
}

// New builds an IS25WP on mem. Identification and geometry fields of cfg
// are replaced by the ones of the part; logger, name and dummy cycles are kept.
func New(mem memory.Store, blockSize BlockSize, cfg norflash.Config) (*Device, error) {
	if mem == nil {
		return nil, norflash.ErrorNoMemory
	}

	size := mem.Size()
	if !memory.IsPowerOfTwo(size) || size%largeBlockSize != 0 {
		return nil, ErrorInvalidSize
	}

	var blocks int
	switch blockSize {
	case Block64K:
		if size < 2*largeBlockSize {
			return nil, fmt.Errorf("%w: 64K blocks need at least 128KiB", ErrorInvalidSize)
		}
		/* The 4KiB sub-blocks replace two 64KiB blocks at the top or the bottom */
		blocks = subblockRegion/subblockSize + int((size-subblockRegion)/largeBlockSize)
	case Block256K:
		if size < uniformBlockSize {
			return nil, fmt.Errorf("%w: 256K blocks need at least 256KiB", ErrorInvalidSize)
		}
		blocks = int(size / uniformBlockSize)
	default:
		return nil, fmt.Errorf("%w: %d", ErrorInvalidBlockSize, int(blockSize))
	}

	ext := &extension{
		size:      size,
		blockSize: blockSize,
		blocks:    make([]blockConfiguration, blocks),
	}
	ext.Reset()
	for i := range ext.blocks {
		ext.blocks[i].ppb = true
	}

	cfg.ManufacturerID = ManufacturerID
	cfg.MemoryType = MemoryType
	cfg.CapacityCode = byte(bits.Len64(uint64(size)) - 1)
	cfg.SectorSize = SectorSize
	cfg.Extension = ext
	if cfg.Name == "" {
		cfg.Name = "is25wp"
	}

	flash, err := norflash.New(mem, cfg)
	if err != nil {
		return nil, err
	}

	return &Device{
		Flash: flash,
		ext:   ext,
	}, nil
}

func (d *Device) BlockCount() int {
	return len(d.ext.blocks)
}

// BlockOf returns the protection block containing addr.
func (d *Device) BlockOf(addr int64) int {
	return d.ext.blockOf(addr)
}

func (d *Device) BlockProtected(block int) bool {
	return d.ext.blocks[block].protected()
}

func (d *Device) PPB(block int) bool {
	return d.ext.blocks[block].ppb
}

func (d *Device) DYB(block int) bool {
	return d.ext.blocks[block].dyb
}

func (e *extension) subblocksAtBottom() bool {
	return e.asp&aspTopBottom != 0
}

func (e *extension) blockOf(addr int64) int {
	if e.blockSize == Block256K {
		return int(addr / uniformBlockSize)
	}

	block := 0
	if e.subblocksAtBottom() {
		n := min(subblockRegion, addr)
		block += int(n / subblockSize)
		addr -= n
	}

	full := addr / largeBlockSize
	maxFull := e.size/largeBlockSize - 2
	if full < maxFull {
		return block + int(full)
	}

	block += int(maxFull)
	addr -= maxFull * largeBlockSize

	if !e.subblocksAtBottom() {
		block += int(min(subblockRegion, addr) / subblockSize)
	}

	return block
}

// WriteProtected reports whether any block overlapping the range is protected.
func (e *extension) WriteProtected(start int64, length int64) bool {
	if length <= 0 {
		return false
	}

	end := min(start+length, e.size) - 1
	if end < start {
		return false
	}

	last := e.blockOf(end)
	for b := e.blockOf(start); b <= last && b < len(e.blocks); b++ {
		if e.blocks[b].protected() {
			return true
		}
	}
	return false
}
