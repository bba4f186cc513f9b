package norflash

import (
	"errors"
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/BertoldVdb/spinor/memory"
)

var (
	ErrorNoMemory          = errors.New("no backing memory")
	ErrorInvalidSectorSize = errors.New("sector size must be a power of 2")
)

const (
	idLength = 20

	DefaultManufacturerID      = 0x20
	DefaultMemoryType          = 0xBA
	DefaultRemainingIDBytes    = 0x10
	DefaultExtendedDeviceID    = 1 << 6
	DefaultDeviceConfiguration = 0
	DefaultSectorSize          = 64 * 1024
)

// DefaultSFDP is the table returned when no device specific one is configured.
var DefaultSFDP = []byte{
	0x53, 0x46, 0x44, 0x50, 0x06, 0x01, 0x00, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}

// Config describes the identity and geometry of a flash device.
type Config struct {
	Name string

	ManufacturerID      byte
	MemoryType          byte
	CapacityCode        byte // 0 derives it from the memory size
	RemainingIDBytes    byte
	ExtendedDeviceID    byte
	DeviceConfiguration byte

	// SectorSize is the unit of the sector erase commands.
	SectorSize int64

	// StatusWriteEnableReadOnly makes the write enable latch immune to
	// WriteStatusRegister.
	StatusWriteEnableReadOnly bool

	SFDP       []byte
	DummyBytes map[Command]int

	Extension Extension
	Logger    *slog.Logger
}

// DefaultConfig describes a Micron MT25Q compatible device.
func DefaultConfig() Config {
	return Config{
		Name:                "norflash",
		ManufacturerID:      DefaultManufacturerID,
		MemoryType:          DefaultMemoryType,
		RemainingIDBytes:    DefaultRemainingIDBytes,
		ExtendedDeviceID:    DefaultExtendedDeviceID,
		DeviceConfiguration: DefaultDeviceConfiguration,
		SectorSize:          DefaultSectorSize,
	}
}

// Flash interprets the byte stream of an SPI NOR flash. It is not safe
// for concurrent use; spiconn serialises access when shared.
type Flash struct {
	mem memory.Store
	log *slog.Logger

	ext        Extension
	translator AddressTranslator
	guard      WriteGuard

	opcodes    *opcodeTable
	deviceData [idLength]byte
	sfdp       []byte
	sectorSize int64

	registers              registerBank
	op                     DecodedOperation
	temporaryConfiguration uint16

	opcodesReceived  int
	clearWriteEnable bool
	resetEnabled     bool
	resetArmed       bool

	locked *Range
}

// CapacityCode encodes a memory size the way the third ID byte does.
// Codes jump from 0x19 (32 MiB) to 0x20 (64 MiB).
func CapacityCode(size int64) byte {
	log2 := bits.Len64(uint64(size)) - 1
	if size <= 32*1024*1024 {
		return byte(log2)
	}
	return byte(log2 - 26 + 0x20)
}

func New(mem memory.Store, cfg Config) (*Flash, error) {
	if mem == nil {
		return nil, ErrorNoMemory
	}
	if !memory.IsPowerOfTwo(mem.Size()) {
		return nil, memory.ErrorInvalidSize
	}

	if cfg.SectorSize == 0 {
		cfg.SectorSize = DefaultSectorSize
	}
	if !memory.IsPowerOfTwo(cfg.SectorSize) {
		return nil, fmt.Errorf("%w: %d", ErrorInvalidSectorSize, cfg.SectorSize)
	}
	if cfg.SFDP == nil {
		cfg.SFDP = DefaultSFDP
	}
	if cfg.Name == "" {
		cfg.Name = "norflash"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f := &Flash{
		mem:        mem,
		log:        cfg.Logger.With("device", cfg.Name),
		ext:        cfg.Extension,
		opcodes:    newOpcodeTable(cfg.DummyBytes),
		sfdp:       append([]byte(nil), cfg.SFDP...),
		sectorSize: cfg.SectorSize,
		registers:  newRegisterBank(!cfg.StatusWriteEnableReadOnly),
	}

	if t, ok := cfg.Extension.(AddressTranslator); ok {
		f.translator = t
	}
	if g, ok := cfg.Extension.(WriteGuard); ok {
		f.guard = g
	}

	capacity := cfg.CapacityCode
	if capacity == 0 {
		capacity = CapacityCode(mem.Size())
	}

	/* The remaining bytes are the factory unique ID, left zero */
	f.deviceData[0] = cfg.ManufacturerID
	f.deviceData[1] = cfg.MemoryType
	f.deviceData[2] = capacity
	f.deviceData[3] = cfg.RemainingIDBytes
	f.deviceData[4] = cfg.ExtendedDeviceID
	f.deviceData[5] = cfg.DeviceConfiguration

	return f, nil
}

func (f *Flash) Memory() memory.Store {
	return f.mem
}

func (f *Flash) Size() int64 {
	return f.mem.Size()
}

func (f *Flash) SectorSize() int64 {
	return f.sectorSize
}

// DeviceData returns a copy of the identification array.
func (f *Flash) DeviceData() []byte {
	return append([]byte(nil), f.deviceData[:]...)
}

// Operation returns a copy of the command being decoded.
func (f *Flash) Operation() DecodedOperation {
	return f.op
}

// SetLockedRange forbids program and erase inside r until Reset.
func (f *Flash) SetLockedRange(r Range) {
	f.locked = &r
}

func (f *Flash) ClearLockedRange() {
	f.locked = nil
}

func (f *Flash) LockedRange() (Range, bool) {
	if f.locked == nil {
		return Range{}, false
	}
	return *f.locked, true
}

// Reset puts the device in its power on state. Memory contents are kept.
func (f *Flash) Reset() {
	f.registers.reset()
	f.locked = nil
	f.resetEnabled = false
	f.resetArmed = false
	if r, ok := f.ext.(Resetter); ok {
		r.Reset()
	}
	f.endCycle()
}

// OnChipSelect follows the chip select line; a deassert ends the command.
func (f *Flash) OnChipSelect(deasserted bool) {
	if deasserted {
		f.FinishTransmission()
	}
}

// Transmit clocks one byte in and returns the byte clocked out.
func (f *Flash) Transmit(data byte) byte {
	f.noisy("Transmitting data", "data", data, "state", f.op.State)

	var result byte
	switch f.op.State {
	case StateRecognizeOperation:
		f.recognizeOperation(Command(data))
	case StateAccumulateCommandAddressBytes:
		f.accumulateAddressBytes(data, StateHandleCommand)
	case StateAccumulateNoDataCommandAddressBytes:
		f.accumulateAddressBytes(data, StateHandleNoDataCommand)
	case StateHandleCommand:
		result = f.handleCommand(data)
	default:
		panic("unreachable")
	}

	/* Commands without data run as soon as their address is complete */
	if f.op.State == StateHandleNoDataCommand {
		f.handleNoDataCommand()
	}

	return result
}

// FinishTransmission ends the current command.
func (f *Flash) FinishTransmission() {
	switch f.op.State {
	case StateRecognizeOperation:
		if f.opcodesReceived == 0 {
			f.log.Warn("Transmission finished before an opcode was received")
		}
	case StateAccumulateCommandAddressBytes, StateAccumulateNoDataCommandAddressBytes:
		f.log.Warn("Transmission finished in the address phase", "operation", f.op)
	}

	if f.clearWriteEnable {
		f.setWriteEnable(false)
	}

	f.endCycle()
}

func (f *Flash) endCycle() {
	f.op = DecodedOperation{}
	f.temporaryConfiguration = 0
	f.opcodesReceived = 0
	f.clearWriteEnable = false
}

func (f *Flash) recognizeOperation(cmd Command) {
	/* Reset memory is only accepted directly after reset enable */
	f.resetArmed, f.resetEnabled = f.resetEnabled, false

	f.opcodesReceived++
	f.op = DecodedOperation{State: StateHandleCommand}
	f.temporaryConfiguration = 0

	if f.ext != nil && f.ext.RecognizeOperation(f, &f.op, cmd) {
		f.decoded(cmd)
		return
	}

	entry := f.opcodes[cmd]
	if entry == nil {
		f.log.Error("Operation not supported", "opcode", cmd)
		return
	}

	if entry.action != nil {
		f.op.State = StateRecognizeOperation
		entry.action(f)
		f.noisy("Executed command", "opcode", cmd)
		return
	}

	f.op.Operation = entry.operation
	f.op.State = entry.state
	f.op.AddressLength = entry.addressLength
	if f.op.AddressLength == addressFromMode {
		f.op.AddressLength = f.numberOfAddressBytes()
	}
	f.op.DummyBytesRemaining = entry.dummyBytes
	f.op.EraseSize = entry.eraseSize
	f.op.Register = entry.register

	f.decoded(cmd)
}

func (f *Flash) decoded(cmd Command) {
	switch f.op.Operation {
	case OperationProgram, OperationErase, OperationWriteRegister:
		f.clearWriteEnable = true
	}
	f.noisy("Decoded operation", "opcode", cmd, "operation", f.op)
}

func (f *Flash) accumulateAddressBytes(data byte, next OperationState) {
	if !f.op.TryAccumulateAddress(data) {
		return
	}

	if f.op.Operation.IsMemoryAccess() && f.op.AddressLength == 3 {
		f.op.ExecutionAddress |= uint32(f.registers.extendedAddress.read()) << 24
		if f.translator != nil {
			f.translator.TranslateAddress(&f.op)
		}
	}

	f.op.State = next
	f.noisy("Address accumulated", "operation", f.op)
}

func (f *Flash) resetMemory() {
	if !f.resetArmed {
		f.log.Warn("Reset memory received without reset enable, ignored")
		return
	}

	f.registers.resetVolatile()
	f.log.Info("Software reset")
}
