// Package flashtasks holds the host side procedures run against a flash
// chip: whole image write with verify, dumps and region programming.
package flashtasks

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BertoldVdb/spinor/image"
	"github.com/BertoldVdb/spinor/spiflash"
	"periph.io/x/conn/v3"
)

var (
	ErrorVerify      = errors.New("verify failed")
	ErrorTooLarge    = errors.New("data does not fit in the flash")
	ErrorUnknownSize = errors.New("flash size unknown")
)

type Tasks struct {
	flash *spiflash.Flash
	log   *slog.Logger
}

func New(spi spiflash.SPIFunc, maxBytesPerTransaction int) (*Tasks, error) {
	flash, err := spiflash.New(spi, maxBytesPerTransaction)
	if err != nil {
		return nil, err
	}
	return fromFlash(flash), nil
}

func NewFromConn(c conn.Conn) (*Tasks, error) {
	flash, err := spiflash.NewFromConn(c)
	if err != nil {
		return nil, err
	}
	return fromFlash(flash), nil
}

func fromFlash(flash *spiflash.Flash) *Tasks {
	t := &Tasks{
		flash: flash,
		log:   slog.Default().With("flash", flash.Name()),
	}
	t.log.Debug("Detected flash", "id", fmt.Sprintf("%x", flash.DeviceID()), "size", flash.Size())
	return t
}

func (t *Tasks) SetLogger(log *slog.Logger) {
	t.log = log.With("flash", t.flash.Name())
}

func (t *Tasks) Flash() *spiflash.Flash {
	return t.flash
}

func (t *Tasks) size() (uint32, error) {
	size := t.flash.Size()
	if size == 0 {
		return 0, ErrorUnknownSize
	}
	return size, nil
}

func (t *Tasks) fits(offset uint32, length int) error {
	size, err := t.size()
	if err != nil {
		return err
	}
	if uint64(offset)+uint64(length) > uint64(size) {
		return fmt.Errorf("%w: 0x%x bytes at 0x%x", ErrorTooLarge, length, offset)
	}
	return nil
}

func (t *Tasks) verify(offset uint32, data []byte) error {
	rb := make([]byte, len(data))
	if _, err := t.flash.Read(offset, rb); err != nil {
		return err
	}

	if !bytes.Equal(rb, data) {
		for i := range rb {
			if rb[i] != data[i] {
				return fmt.Errorf("%w at 0x%x", ErrorVerify, offset+uint32(i))
			}
		}
	}
	return nil
}

// ImageWrite erases the whole chip and writes content from address 0.
func (t *Tasks) ImageWrite(content []byte, verify bool) error {
	if err := t.fits(0, len(content)); err != nil {
		return err
	}

	if err := t.flash.EraseChip(); err != nil {
		return err
	}
	if _, err := t.flash.Write(0, content); err != nil {
		return err
	}
	t.log.Info("Image written", "bytes", len(content))

	if verify {
		return t.verify(0, content)
	}
	return nil
}

// ImageRead dumps the complete chip.
func (t *Tasks) ImageRead() ([]byte, error) {
	size, err := t.size()
	if err != nil {
		return nil, err
	}

	data := make([]byte, size)
	_, err = t.flash.Read(0, data)
	return data, err
}

func (t *Tasks) Erase() error {
	return t.flash.EraseChip()
}

// Program replaces a region. The erase blocks it touches are read first so
// bytes outside the region keep their contents.
func (t *Tasks) Program(offset uint32, data []byte, verify bool) error {
	if err := t.fits(offset, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	bs := t.flash.BlockSize()
	start := offset &^ (bs - 1)
	end := (offset + uint32(len(data)) + bs - 1) &^ (bs - 1)

	merged := make([]byte, end-start)
	if _, err := t.flash.Read(start, merged); err != nil {
		return err
	}
	copy(merged[offset-start:], data)

	t.log.Debug("Programming region", "start", start, "end", end)
	for addr := start; addr < end; addr += bs {
		if err := t.flash.EraseBlock(addr); err != nil {
			return err
		}
	}

	if _, err := t.flash.Write(start, merged); err != nil {
		return err
	}

	if verify {
		return t.verify(start, merged)
	}
	return nil
}

// Snapshot dumps the chip into a checksummed image. The bus does not reveal
// the erased value of the part, so the caller supplies it.
func (t *Tasks) Snapshot(erased byte) ([]byte, error) {
	data, err := t.ImageRead()
	if err != nil {
		return nil, err
	}
	return image.Build(data, erased), nil
}

// Restore writes a checksummed image back to the chip.
func (t *Tasks) Restore(img []byte, verify bool) error {
	content, _, err := image.Extract(img)
	if err != nil {
		return err
	}
	return t.ImageWrite(content, verify)
}
