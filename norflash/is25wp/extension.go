package is25wp

import "github.com/BertoldVdb/spinor/norflash"

const (
	cmdReadBankAddress                 norflash.Command = 0x16
	cmdWriteBankAddressVolatile        norflash.Command = 0x17
	cmdWriteBankAddressNonVolatile     norflash.Command = 0x18
	cmdReadAdvancedSectorProtection    norflash.Command = 0x2B
	cmdProgramAdvancedSectorProtection norflash.Command = 0x2F
	cmdReadPassword                    norflash.Command = 0xE7
	cmdProgramPassword                 norflash.Command = 0xE8
	cmdUnlockPassword                  norflash.Command = 0xE9
	cmdReadPPBLock                     norflash.Command = 0xA7
	cmdWritePPBLock                    norflash.Command = 0xA6
	cmdSetFreezeBit                    norflash.Command = 0x91
	cmdReadPPB                         norflash.Command = 0xFC
	cmdProgramPPB                      norflash.Command = 0xFD
	cmdErasePPB                        norflash.Command = 0xE4
	cmdReadDYB                         norflash.Command = 0xFA
	cmdProgramDYB                      norflash.Command = 0xFB
)

const (
	RegisterBankAddress = norflash.FirstNonstandardRegister + iota
	RegisterAdvancedSectorProtection
	RegisterPassword
	RegisterPPBLock
	RegisterPPB
	RegisterDYB
)

const (
	bankBA24     = 1 << 0
	bankBA25     = 1 << 1
	bankExtended = 1 << 7
	bankMask     = bankBA24 | bankBA25 | bankExtended

	aspPersistentMode = 1 << 1
	aspPasswordMode   = 1 << 2
	aspTopBottom      = 1 << 15

	ppbLockBit = 1 << 0
	freezeBit  = 1 << 7

	aspWidth      = 2
	passwordWidth = 8
)

type extension struct {
	size      int64
	blockSize BlockSize
	blocks    []blockConfiguration

	bank     byte
	asp      uint16
	password uint64
	ppbLock  bool
	freeze   bool
}

// Reset restores the volatile protection state.
func (e *extension) Reset() {
	for i := range e.blocks {
		e.blocks[i].dyb = true
	}
	e.bank = 0
	e.ppbLock = false
	e.freeze = false
}

func (e *extension) aspWriteMask() uint16 {
	mask := uint16(aspPersistentMode | aspPasswordMode)
	if e.blockSize == Block64K {
		mask |= aspTopBottom
	}
	return mask
}

func (e *extension) protectionAddressLength() int {
	if e.bank&bankExtended != 0 {
		return 4
	}
	return 3
}

// TranslateAddress extends 3-byte memory addresses with BA24 and BA25.
func (e *extension) TranslateAddress(op *norflash.DecodedOperation) {
	op.ExecutionAddress |= uint32(e.bank&(bankBA24|bankBA25)) << 24
}

func (e *extension) RecognizeOperation(f *norflash.Flash, op *norflash.DecodedOperation, opcode norflash.Command) bool {
	readRegister := func(reg norflash.Register) {
		op.Operation = norflash.OperationReadRegister
		op.Register = reg
	}
	writeRegister := func(reg norflash.Register) {
		op.Operation = norflash.OperationWriteRegister
		op.Register = reg
	}
	addressed := func() {
		op.State = norflash.StateAccumulateCommandAddressBytes
		op.AddressLength = e.protectionAddressLength()
	}

	switch opcode {
	case cmdReadBankAddress:
		readRegister(RegisterBankAddress)
	case cmdWriteBankAddressVolatile, cmdWriteBankAddressNonVolatile:
		writeRegister(RegisterBankAddress)
	case cmdReadAdvancedSectorProtection:
		readRegister(RegisterAdvancedSectorProtection)
	case cmdProgramAdvancedSectorProtection:
		writeRegister(RegisterAdvancedSectorProtection)
	case cmdReadPassword:
		readRegister(RegisterPassword)
	case cmdProgramPassword:
		writeRegister(RegisterPassword)
	case cmdReadPPBLock:
		readRegister(RegisterPPBLock)
	case cmdReadPPB:
		readRegister(RegisterPPB)
		addressed()
	case cmdProgramPPB:
		writeRegister(RegisterPPB)
		addressed()
	case cmdReadDYB:
		readRegister(RegisterDYB)
		addressed()
	case cmdProgramDYB:
		writeRegister(RegisterDYB)
		addressed()

	case cmdUnlockPassword:
		f.Logger().Warn("Password protection mode is not supported, unlock password ignored")
		op.State = norflash.StateRecognizeOperation
	case cmdWritePPBLock:
		e.ppbLock = true
		op.State = norflash.StateRecognizeOperation
	case cmdSetFreezeBit:
		e.freeze = true
		op.State = norflash.StateRecognizeOperation
	case cmdErasePPB:
		if e.ppbLock {
			f.Logger().Warn("Tried to erase PPB array while locked")
		} else {
			for i := range e.blocks {
				e.blocks[i].ppb = true
			}
		}
		op.State = norflash.StateRecognizeOperation

	default:
		return false
	}

	return true
}

// protectionBlock resolves the block addressed by a PPB or DYB command.
func (e *extension) protectionBlock(f *norflash.Flash, op *norflash.DecodedOperation) (int, bool) {
	addr := int64(op.ExecutionAddress)
	if op.AddressLength == 3 {
		addr |= int64(e.bank&(bankBA24|bankBA25)) << 24
	}

	if addr >= e.size {
		f.Logger().Warn("Protection bit address beyond the configured memory size", "address", addr)
		return 0, false
	}

	return e.blockOf(addr), true
}

func (e *extension) ReadRegister(f *norflash.Flash, op *norflash.DecodedOperation, reg norflash.Register) (byte, bool) {
	switch reg {
	case RegisterBankAddress:
		return e.bank, true

	case RegisterPPBLock:
		var value byte
		if e.ppbLock {
			value |= ppbLockBit
		}
		if e.freeze {
			value |= freezeBit
		}
		return value, true

	case RegisterAdvancedSectorProtection, RegisterPassword:
		value, width := uint64(e.asp), aspWidth
		if reg == RegisterPassword {
			value, width = e.password, passwordWidth
		}
		if op.CommandBytesHandled < width {
			return byte(value >> (8 * op.CommandBytesHandled)), true
		}
		f.Logger().Warn("Tried to read past the register width, returning 0", "register", reg)
		return 0, true

	case RegisterPPB, RegisterDYB:
		block, ok := e.protectionBlock(f, op)
		if !ok {
			return 0, true
		}
		bit := e.blocks[block].ppb
		if reg == RegisterDYB {
			bit = e.blocks[block].dyb
		}
		if bit {
			return 0xFF, true
		}
		return 0x00, true
	}

	return 0, false
}

func (e *extension) WriteRegister(f *norflash.Flash, op *norflash.DecodedOperation, reg norflash.Register, data byte) bool {
	switch reg {
	case RegisterBankAddress:
		e.bank = data & bankMask

	case RegisterAdvancedSectorProtection:
		if op.CommandBytesHandled >= aspWidth {
			f.Logger().Warn("Tried to write past the register width", "register", reg)
			return true
		}
		shift := 8 * op.CommandBytesHandled
		value := e.asp&^(0xff<<shift) | uint16(data)<<shift
		mask := e.aspWriteMask()
		e.asp = e.asp&^mask | value&mask

	case RegisterPassword:
		if op.CommandBytesHandled >= passwordWidth {
			f.Logger().Warn("Tried to write past the register width", "register", reg)
			return true
		}
		shift := 8 * op.CommandBytesHandled
		e.password = e.password&^(0xff<<shift) | uint64(data)<<shift

	case RegisterPPB:
		if !e.ppbLock {
			f.Logger().Warn("Tried to write PPB with the lock bit cleared")
			return true
		}
		if block, ok := e.protectionBlock(f, op); ok {
			e.blocks[block].ppb = data != 0
		}

	case RegisterDYB:
		if block, ok := e.protectionBlock(f, op); ok {
			e.blocks[block].dyb = data != 0
		}

	default:
		return false
	}

	return true
}
