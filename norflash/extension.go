package norflash

// Extension adds vendor specific commands and registers to a Flash. It is
// consulted before the generic opcode table and register bank.
type Extension interface {
	// RecognizeOperation decodes opcode into op. Returning false hands the
	// opcode to the generic table.
	RecognizeOperation(f *Flash, op *DecodedOperation, opcode Command) bool

	ReadRegister(f *Flash, op *DecodedOperation, reg Register) (byte, bool)

	// WriteRegister is only called with the write enable latch set.
	WriteRegister(f *Flash, op *DecodedOperation, reg Register, data byte) bool
}

// AddressTranslator is implemented by extensions that supply upper address
// bits for 3-byte memory commands.
type AddressTranslator interface {
	TranslateAddress(op *DecodedOperation)
}

// WriteGuard is implemented by extensions that can refuse program and
// erase on parts of the array.
type WriteGuard interface {
	WriteProtected(start int64, length int64) bool
}

// Resetter is implemented by extensions with state restored on Reset.
type Resetter interface {
	Reset()
}
