package norflash

import "fmt"

// Register selects the target of a register read or write command.
type Register uint32

const (
	RegisterNone Register = iota
	RegisterStatus
	RegisterConfiguration
	RegisterFlagStatus
	RegisterExtendedAddress
	RegisterNonVolatileConfiguration
	RegisterVolatileConfiguration
	RegisterEnhancedVolatileConfiguration

	// Extensions number their registers from here on.
	FirstNonstandardRegister Register = 0x100
)

var registerNames = [...]string{
	RegisterNone:                          "None",
	RegisterStatus:                        "Status",
	RegisterConfiguration:                 "Configuration",
	RegisterFlagStatus:                    "FlagStatus",
	RegisterExtendedAddress:               "ExtendedAddress",
	RegisterNonVolatileConfiguration:      "NonVolatileConfiguration",
	RegisterVolatileConfiguration:         "VolatileConfiguration",
	RegisterEnhancedVolatileConfiguration: "EnhancedVolatileConfiguration",
}

func (r Register) String() string {
	if int(r) < len(registerNames) {
		return registerNames[r]
	}
	return fmt.Sprintf("Register(0x%X)", uint32(r))
}

const (
	statusWriteInProgress  = 1 << 0
	statusWriteEnableLatch = 1 << 1

	flagStatusAddressing = 1 << 0
	flagStatusReady      = 1 << 7

	volatileConfigurationXIP = 1 << 3

	nonVolatileConfigurationAddressWith3Bytes = 1 << 0

	configurationRegisterWidth = 2
)

// register is a fixed width bit field; bits outside writeMask keep
// their value on writes.
type register struct {
	value     uint16
	resetTo   uint16
	writeMask uint16
	width     int
}

func newRegister(width int, resetTo uint16, writeMask uint16) register {
	return register{
		value:     resetTo,
		resetTo:   resetTo,
		writeMask: writeMask,
		width:     width,
	}
}

func (r *register) read() uint16 {
	return r.value
}

func (r *register) write(value uint16) {
	r.value = r.value&^r.writeMask | value&r.writeMask
}

func (r *register) reset() {
	r.value = r.resetTo
}

// byteAt returns byte index of the register, least significant first.
func (r *register) byteAt(index int) byte {
	return byte(r.value >> (8 * index))
}

type registerBank struct {
	status                        register
	configuration                 register
	volatileConfiguration         register
	nonVolatileConfiguration      register
	enhancedVolatileConfiguration register
	extendedAddress               register
}

func newRegisterBank(statusCanSetWriteEnable bool) registerBank {
	/* Only the write enable latch is backed by the status register, the
	 * write in progress bit always reads as idle */
	statusMask := uint16(0)
	if statusCanSetWriteEnable {
		statusMask = statusWriteEnableLatch
	}

	return registerBank{
		status:                        newRegister(1, 0, statusMask),
		configuration:                 newRegister(configurationRegisterWidth, 0, 0xffff),
		volatileConfiguration:         newRegister(1, 0xfb, 0xff),
		nonVolatileConfiguration:      newRegister(configurationRegisterWidth, 0xffff, 0xffff),
		enhancedVolatileConfiguration: newRegister(1, 0xff, 0xff),
		extendedAddress:               newRegister(1, 0, 0xff),
	}
}

func (b *registerBank) reset() {
	b.status.reset()
	b.configuration.reset()
	b.volatileConfiguration.reset()
	b.nonVolatileConfiguration.reset()
	b.enhancedVolatileConfiguration.reset()
	b.extendedAddress.reset()
}

// resetVolatile is what a software reset (0x66, 0x99) restores.
func (b *registerBank) resetVolatile() {
	b.status.reset()
	b.volatileConfiguration.reset()
	b.enhancedVolatileConfiguration.reset()
	b.extendedAddress.reset()
}

func (f *Flash) WriteEnabled() bool {
	return f.registers.status.value&statusWriteEnableLatch != 0
}

func (f *Flash) setWriteEnable(enable bool) {
	if enable {
		f.registers.status.value |= statusWriteEnableLatch
	} else {
		f.registers.status.value &^= statusWriteEnableLatch
	}
}

// FourByteAddressing reports whether mode dependent commands take a
// 4-byte address.
func (f *Flash) FourByteAddressing() bool {
	return f.registers.nonVolatileConfiguration.value&nonVolatileConfigurationAddressWith3Bytes == 0
}

func (f *Flash) setFourByteAddressing(enable bool) {
	if enable {
		f.registers.nonVolatileConfiguration.value &^= nonVolatileConfigurationAddressWith3Bytes
	} else {
		f.registers.nonVolatileConfiguration.value |= nonVolatileConfigurationAddressWith3Bytes
	}
}

func (f *Flash) numberOfAddressBytes() int {
	if f.FourByteAddressing() {
		return 4
	}
	return 3
}

func (f *Flash) statusRegister() byte {
	return byte(f.registers.status.read()) &^ statusWriteInProgress
}

func (f *Flash) flagStatusRegister() byte {
	/* Program and erase complete instantly, so the device is always ready.
	 * Bit 0 mirrors the raw addressing bit of the non-volatile register. */
	result := byte(flagStatusReady)
	if f.registers.nonVolatileConfiguration.value&nonVolatileConfigurationAddressWith3Bytes != 0 {
		result |= flagStatusAddressing
	}
	return result
}

func (f *Flash) readRegister(reg Register) byte {
	if f.ext != nil {
		if value, ok := f.ext.ReadRegister(f, &f.op, reg); ok {
			return value
		}
	}

	switch reg {
	case RegisterStatus:
		// At least one byte is read, further bytes repeat the same value
		return f.statusRegister()
	case RegisterFlagStatus:
		return f.flagStatusRegister()
	case RegisterVolatileConfiguration:
		return byte(f.registers.volatileConfiguration.read())
	case RegisterEnhancedVolatileConfiguration:
		return byte(f.registers.enhancedVolatileConfiguration.read())
	case RegisterExtendedAddress:
		return byte(f.registers.extendedAddress.read())
	case RegisterNonVolatileConfiguration, RegisterConfiguration:
		source := &f.registers.configuration
		if reg == RegisterNonVolatileConfiguration {
			source = &f.registers.nonVolatileConfiguration
		}
		if f.op.CommandBytesHandled < source.width {
			return source.byteAt(f.op.CommandBytesHandled)
		}
		return 0
	}

	f.log.Warn("Trying to read from unsupported register", "register", reg)
	return 0
}

func (f *Flash) writeRegister(reg Register, data byte) {
	if !f.WriteEnabled() {
		f.log.Error("Trying to write a register, but write enable latch is not set", "register", reg)
		return
	}

	if f.ext != nil && f.ext.WriteRegister(f, &f.op, reg, data) {
		return
	}

	switch reg {
	case RegisterVolatileConfiguration:
		f.registers.volatileConfiguration.write(uint16(data))
	case RegisterEnhancedVolatileConfiguration:
		f.registers.enhancedVolatileConfiguration.write(uint16(data))
	case RegisterExtendedAddress:
		f.registers.extendedAddress.write(uint16(data))
	case RegisterNonVolatileConfiguration, RegisterConfiguration:
		index := f.op.CommandBytesHandled
		if index >= configurationRegisterWidth {
			f.log.Error("Trying to write register with more bytes than expected", "register", reg, "width", configurationRegisterWidth)
			return
		}

		shift := 8 * index
		f.temporaryConfiguration = f.temporaryConfiguration&^(0xff<<shift) | uint16(data)<<shift
		if index == configurationRegisterWidth-1 {
			target := &f.registers.configuration
			if reg == RegisterNonVolatileConfiguration {
				target = &f.registers.nonVolatileConfiguration
			}
			target.write(f.temporaryConfiguration)
		}
	case RegisterStatus:
		f.registers.status.write(uint16(data))

		/* The following bytes go to the configuration register, starting
		 * from its first byte */
		f.op.Register = RegisterConfiguration
		f.op.CommandBytesHandled--
	default:
		f.log.Warn("Trying to write to unsupported register", "register", reg, "data", data)
	}
}
