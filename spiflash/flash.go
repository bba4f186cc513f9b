package spiflash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

type SPIFunc func(out []byte, in []byte) error

const (
	opcodeRead4        = 0x13
	opcodeProgram4     = 0x12
	opcodeBlockErase4  = 0x21
	opcodeSectorErase4 = 0xDC
)

type Flash struct {
	spi SPIFunc

	deviceID [4]byte
	device   flashDevice
	size     uint32

	/* Parts above 16MiB are driven with the 4-byte address opcodes */
	addr4 bool

	maxBytesPerTransaction int
}

func New(spi SPIFunc, maxBytesPerTransaction int) (*Flash, error) {
	f := &Flash{
		spi: spi,

		maxBytesPerTransaction: maxBytesPerTransaction,
	}

	if err := f.readDeviceID(); err != nil {
		if err := f.readDeviceID(); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func (f *Flash) readDeviceID() error {
	if err := f.spi([]byte{0x9F}, f.deviceID[:]); err != nil {
		return err
	}

	t := binary.BigEndian.Uint32(f.deviceID[:])
	var ok bool
	f.device, ok = deviceLookup(t)
	if !ok {
		return fmt.Errorf("unsupported flash type: %08x", t)
	}

	f.size = f.device.chipSize
	if f.size == 0 {
		f.size = capacityToSize(f.deviceID[2])
	}
	f.addr4 = f.size > 1<<24

	return nil
}

func (f *Flash) DeviceID() [4]byte {
	return f.deviceID
}

func (f *Flash) Name() string {
	return f.device.name
}

// Size returns the chip size from the device table, or from the capacity
// code for families that come in many densities.
func (f *Flash) Size() uint32 {
	return f.size
}

// command builds an opcode and address header, picking the 4-byte
// address variant of the opcode on large parts.
func (f *Flash) command(opcode uint8, opcode4 uint8, address uint32, extra int) []byte {
	if !f.addr4 {
		cmd := make([]byte, 4, 4+extra)
		binary.BigEndian.PutUint32(cmd, address)
		cmd[0] = opcode
		return cmd
	}

	cmd := make([]byte, 5, 5+extra)
	cmd[0] = opcode4
	binary.BigEndian.PutUint32(cmd[1:], address)
	return cmd
}

func (f *Flash) writeEnable() error {
	return f.spi([]byte{0x6}, nil)
}

func (f *Flash) statusRead() (uint8, error) {
	var result [1]byte
	err := f.spi([]byte{0x5}, result[:])
	return result[0], err
}

func (f *Flash) Status() (uint8, error) {
	return f.statusRead()
}

func (f *Flash) waitIdle(maxDuration time.Duration) error {
	timeout := time.Now().Add(maxDuration)
	for time.Now().Before(timeout) {
		if status, err := f.statusRead(); err != nil {
			return err
		} else {
			if status&1 == 0 {
				if status&(1<<5) > 0 {
					return errors.New("program operation failed")
				}
				return nil
			}
		}
	}
	return errors.New("timeout")
}

func (f *Flash) EraseChip() error {
	if err := f.writeEnable(); err != nil {
		return err
	}

	if err := f.spi([]byte{f.device.opcodeChipErase}, nil); err != nil {
		return err
	}

	err := f.waitIdle(2 * time.Second)
	return err
}

func (f *Flash) eraseAt(opcode uint8, opcode4 uint8, address uint32) error {
	if err := f.writeEnable(); err != nil {
		return err
	}

	if err := f.spi(f.command(opcode, opcode4, address, 0), nil); err != nil {
		return err
	}

	err := f.waitIdle(2 * time.Second)
	return err
}

func (f *Flash) ErasePage(address uint32) error {
	return f.eraseAt(f.device.opcodePageErase, opcodeSectorErase4, address)
}

// EraseBlock erases the small erase unit (usually 4KiB) containing address.
func (f *Flash) EraseBlock(address uint32) error {
	return f.eraseAt(f.device.opcodeBlockErase, opcodeBlockErase4, address)
}

func (f *Flash) BlockSize() uint32 {
	return f.device.blockSize
}

func (f *Flash) write(offset uint32, data []byte) (int, error) {
	/* Do not write over page boundary */
	maxLen := pageCrossLength(offset, uint32(len(data)), f.device.pageSize)
	if len(data) > maxLen {
		data = data[:maxLen]
	}

	/* Do not waste time writing large 0xFFFFFF blocks */
	skippedFront := 0
	for i, m := range data {
		if m != 0xFF {
			offset += uint32(i)
			skippedFront = i
			data = data[i:]
			break
		}
	}

	skippedEnd := 0
	for len(data) > 0 && data[len(data)-1] == 0xFF {
		data = data[:len(data)-1]
		skippedEnd++
	}
	if len(data) == 0 {
		return skippedFront + skippedEnd, nil
	}

	tmpBuf := f.command(0x2, opcodeProgram4, offset, len(data))

	/* Ensure the transmission is not too long */
	if len(data)+len(tmpBuf) > f.maxBytesPerTransaction {
		data = data[:f.maxBytesPerTransaction-len(tmpBuf)]
		skippedEnd = 0
	}

	tmpBuf = append(tmpBuf, data...)

	if err := f.writeEnable(); err != nil {
		return 0, err
	}

	if err := f.spi(tmpBuf, nil); err != nil {
		return 0, err
	}

	if err := f.waitIdle(time.Second); err != nil {
		return 0, err
	}

	return skippedFront + skippedEnd + len(data), nil
}

func (f *Flash) Write(offset uint32, data []byte) (int, error) {
	return completeIO(offset, data, f.write)
}

func (f *Flash) read(offset uint32, data []byte) (int, error) {
	out := f.command(0x3, opcodeRead4, offset, 0)
	if len(data)+len(out) > f.maxBytesPerTransaction {
		data = data[:f.maxBytesPerTransaction-len(out)]
	}

	if err := f.spi(out, data); err != nil {
		return 0, err
	}

	return len(data), nil
}

func (f *Flash) Read(offset uint32, data []byte) (int, error) {
	return completeIO(offset, data, f.read)
}

func (f *Flash) sfdpRead(offset uint32, data []byte) (int, error) {
	if len(data)+4 > f.maxBytesPerTransaction {
		data = data[:f.maxBytesPerTransaction-4]
	}

	/* Parts emulated by norflash answer without dummy cycles */
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], offset)
	out[0] = 0x5A

	if err := f.spi(out[:], data); err != nil {
		return 0, err
	}

	return len(data), nil
}

// SFDPRead reads the serial flash discoverable parameter table.
func (f *Flash) SFDPRead(offset uint32, data []byte) (int, error) {
	return completeIO(offset, data, f.sfdpRead)
}
