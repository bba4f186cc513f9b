package norflash

// addressFromMode marks commands whose address length follows the
// addressing mode in the non-volatile configuration register.
const addressFromMode = -1

type opcode struct {
	operation     OperationType
	state         OperationState
	addressLength int
	dummyBytes    int
	eraseSize     EraseSize
	register      Register

	// action makes the opcode immediate: it runs at recognition and the
	// interpreter stays ready for the next opcode.
	action func(f *Flash)
}

type opcodeTable [256]*opcode

func (t *opcodeTable) set(entry opcode, cmds ...Command) {
	for _, c := range cmds {
		e := entry
		t[c] = &e
	}
}

func newOpcodeTable(dummyBytes map[Command]int) *opcodeTable {
	t := &opcodeTable{}

	t.set(opcode{operation: OperationReadID, state: StateHandleCommand},
		CmdReadID, CmdMultipleIoReadID)

	t.set(opcode{operation: OperationReadSFDP, state: StateAccumulateCommandAddressBytes, addressLength: 3},
		CmdReadSerialFlashDiscoveryParameter)

	t.set(opcode{operation: OperationRead, state: StateAccumulateCommandAddressBytes, addressLength: addressFromMode},
		CmdRead, CmdDualOutputFastRead, CmdDualInputOutputFastRead, CmdQuadOutputFastRead, CmdQuadInputOutputFastRead,
		CmdDtrFastRead, CmdDtrDualOutputFastRead, CmdDtrDualInputOutputFastRead, CmdDtrQuadOutputFastRead,
		CmdDtrQuadInputOutputFastRead, CmdQuadInputOutputWordRead)

	t.set(opcode{operation: OperationReadFast, state: StateAccumulateCommandAddressBytes, addressLength: 3, dummyBytes: 1},
		CmdFastRead)

	t.set(opcode{operation: OperationRead, state: StateAccumulateCommandAddressBytes, addressLength: 4},
		CmdRead4byte, CmdFastRead4byte, CmdDualOutputFastRead4byte, CmdDualInputOutputFastRead4byte,
		CmdQuadOutputFastRead4byte, CmdQuadInputOutputFastRead4byte, CmdDtrFastRead4byte,
		CmdDtrDualInputOutputFastRead4byte, CmdDtrQuadInputOutputFastRead4byte)

	t.set(opcode{operation: OperationProgram, state: StateAccumulateCommandAddressBytes, addressLength: addressFromMode},
		CmdPageProgram, CmdDualInputFastProgram, CmdExtendedDualInputFastProgram, CmdQuadInputFastProgram,
		CmdExtendedQuadInputFastProgram)

	t.set(opcode{operation: OperationProgram, state: StateAccumulateCommandAddressBytes, addressLength: 4},
		CmdPageProgram4byte, CmdQuadInputFastProgram4byte, CmdQuadInputExtendedFastProgram4byte)

	erase := func(size EraseSize, addressLength int, cmds ...Command) {
		t.set(opcode{operation: OperationErase, state: StateAccumulateNoDataCommandAddressBytes,
			addressLength: addressLength, eraseSize: size}, cmds...)
	}
	erase(EraseSubsector4K, addressFromMode, CmdSubsectorErase4kb)
	erase(EraseSubsector32K, addressFromMode, CmdSubsectorErase32kb)
	erase(EraseSector, addressFromMode, CmdSectorErase)
	erase(EraseDie, addressFromMode, CmdDieErase)
	erase(EraseSubsector4K, 4, CmdSubsectorErase4byte4kb)
	erase(EraseSubsector32K, 4, CmdSubsectorErase4byte32kb)
	erase(EraseSector, 4, CmdSectorErase4byte)

	/* Chip erase has no address, the erase fires as soon as it is decoded */
	t.set(opcode{operation: OperationErase, state: StateHandleNoDataCommand, eraseSize: EraseDie},
		CmdBulkErase, CmdChipErase)

	readRegister := func(reg Register, cmd Command) {
		t.set(opcode{operation: OperationReadRegister, state: StateHandleCommand, register: reg}, cmd)
	}
	readRegister(RegisterStatus, CmdReadStatusRegister)
	readRegister(RegisterConfiguration, CmdReadConfigurationRegister)
	readRegister(RegisterFlagStatus, CmdReadFlagStatusRegister)
	readRegister(RegisterVolatileConfiguration, CmdReadVolatileConfigurationRegister)
	readRegister(RegisterNonVolatileConfiguration, CmdReadNonVolatileConfigurationRegister)
	readRegister(RegisterEnhancedVolatileConfiguration, CmdReadEnhancedVolatileConfigurationRegister)
	readRegister(RegisterExtendedAddress, CmdReadExtendedAddressRegister)

	writeRegister := func(reg Register, cmd Command) {
		t.set(opcode{operation: OperationWriteRegister, state: StateHandleCommand, register: reg}, cmd)
	}
	writeRegister(RegisterStatus, CmdWriteStatusRegister)
	writeRegister(RegisterVolatileConfiguration, CmdWriteVolatileConfigurationRegister)
	writeRegister(RegisterNonVolatileConfiguration, CmdWriteNonVolatileConfigurationRegister)
	writeRegister(RegisterEnhancedVolatileConfiguration, CmdWriteEnhancedVolatileConfigurationRegister)
	writeRegister(RegisterExtendedAddress, CmdWriteExtendedAddressRegister)

	immediate := func(action func(f *Flash), cmds ...Command) {
		t.set(opcode{state: StateRecognizeOperation, action: action}, cmds...)
	}
	immediate(func(f *Flash) { f.setWriteEnable(true) }, CmdWriteEnable)
	immediate(func(f *Flash) { f.setWriteEnable(false) }, CmdWriteDisable)
	immediate(func(f *Flash) { f.setFourByteAddressing(true) }, CmdEnter4byteAddressMode)
	immediate(func(f *Flash) { f.setFourByteAddressing(false) }, CmdExit4byteAddressMode)
	immediate(func(f *Flash) { f.resetEnabled = true }, CmdResetEnable)
	immediate((*Flash).resetMemory, CmdResetMemory)
	immediate(func(f *Flash) {}, CmdClearFlagStatusRegister)
	immediate(func(f *Flash) {
		f.log.Warn("Power down modes are not supported, command ignored")
	}, CmdEnterDeepPowerDown, CmdReleaseFromDeepPowerdown)

	for cmd, n := range dummyBytes {
		if e := t[cmd]; e != nil && e.action == nil {
			e.dummyBytes = n
		}
	}

	return t
}
