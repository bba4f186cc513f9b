package norflash

const (
	segment4K  = 4 * 1024
	segment32K = 32 * 1024
)

func (f *Flash) handleCommand(data byte) byte {
	if f.op.DummyBytesRemaining > 0 {
		f.op.DummyBytesRemaining--
		f.noisy("Handling dummy byte", "remaining", f.op.DummyBytesRemaining)
		return 0
	}

	var result byte
	switch f.op.Operation {
	case OperationRead, OperationReadFast:
		result = f.readFromMemory()
	case OperationProgram:
		if f.WriteEnabled() {
			f.writeToMemory(data)
			result = data
		} else {
			f.log.Error("Memory write operations are disabled")
		}
	case OperationReadID:
		if f.op.CommandBytesHandled < len(f.deviceData) {
			result = f.deviceData[f.op.CommandBytesHandled]
		} else {
			f.log.Warn("Trying to read beyond the length of the device ID table")
		}
	case OperationReadSFDP:
		result = f.readSFDP()
	case OperationReadRegister:
		result = f.readRegister(f.op.Register)
	case OperationWriteRegister:
		f.writeRegister(f.op.Register, data)
	default:
		f.log.Warn("Unhandled operation encountered while processing command bytes", "operation", f.op.Operation, "data", data)
	}

	f.op.CommandBytesHandled++
	f.noisy("Handled command", "operation", f.op, "result", result)
	return result
}

func (f *Flash) handleNoDataCommand() {
	switch f.op.Operation {
	case OperationErase:
		f.erase()
	default:
		f.log.Warn("Encountered unexpected command", "operation", f.op)
	}

	/* The record keeps the operation so deselect still clears the latch */
	f.op.State = StateRecognizeOperation
}

func (f *Flash) readFromMemory() byte {
	pos := int64(f.op.ExecutionAddress) + int64(f.op.CommandBytesHandled)
	if pos >= f.mem.Size() {
		f.log.Error("Cannot read from address beyond the configured memory size", "address", pos)
		return 0
	}

	return f.mem.LoadByte(pos)
}

func (f *Flash) writeToMemory(data byte) {
	pos, ok := f.verifyWriteToMemory()
	if !ok {
		return
	}
	f.mem.StoreByte(pos, data)
}

func (f *Flash) verifyWriteToMemory() (int64, bool) {
	pos := int64(f.op.ExecutionAddress) + int64(f.op.CommandBytesHandled)
	if pos >= f.mem.Size() {
		f.log.Error("Cannot write to address beyond the configured memory size", "address", pos)
		return 0, false
	}
	if f.locked != nil && f.locked.Contains(pos) {
		f.log.Error("Cannot write to address in the locked range", "address", pos, "range", *f.locked)
		return 0, false
	}
	if f.guard != nil && f.guard.WriteProtected(pos, 1) {
		f.log.Warn("Cannot write to address in a protected block", "address", pos)
		return 0, false
	}
	return pos, true
}

func (f *Flash) readSFDP() byte {
	addr := int(f.op.ExecutionAddress)
	if addr >= len(f.sfdp) {
		f.log.Warn("Reading SFDP beyond the end of the table", "address", addr, "length", len(f.sfdp))
		return 0
	}

	result := f.sfdp[addr]
	f.op.ExecutionAddress = uint32((addr + 1) % len(f.sfdp))
	return result
}

func (f *Flash) erase() {
	if !f.WriteEnabled() {
		f.log.Error("Erase operations are disabled")
		return
	}

	if int64(f.op.ExecutionAddress) >= f.mem.Size() {
		f.log.Error("Cannot erase memory beyond the configured memory size", "address", f.op.ExecutionAddress)
		return
	}

	switch f.op.EraseSize {
	case EraseSubsector4K:
		f.eraseSegment(segment4K)
	case EraseSubsector32K:
		f.eraseSegment(segment32K)
	case EraseSector:
		f.eraseSegment(f.sectorSize)
	case EraseDie:
		f.eraseChip()
	default:
		panic("unreachable")
	}
}

func (f *Flash) eraseChip() {
	if f.locked != nil {
		f.log.Error("Chip erase can only be performed when there is no locked range")
		return
	}
	if f.guard != nil && f.guard.WriteProtected(0, f.mem.Size()) {
		f.log.Error("Chip erase refused, the device has protected blocks")
		return
	}

	f.log.Debug("Erasing whole chip")
	f.mem.EraseAll()
}

func (f *Flash) eraseSegment(size int64) {
	segment := Range{
		Start: size * (int64(f.op.ExecutionAddress) / size),
		Size:  size,
	}

	if f.guard != nil && f.guard.WriteProtected(segment.Start, segment.Size) {
		f.log.Warn("Erase refused, segment overlaps a protected block", "segment", segment)
		return
	}

	parts := []Range{segment}
	if f.locked != nil {
		parts = segment.Subtract(*f.locked)
	}

	f.log.Debug("Erasing segment", "segment", segment, "parts", len(parts))
	for _, p := range parts {
		f.mem.Erase(p.Start, p.Size)
	}
}
