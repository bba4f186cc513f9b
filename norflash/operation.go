package norflash

import "fmt"

type OperationType int

const (
	OperationNone OperationType = iota
	OperationRead
	OperationReadFast
	OperationProgram
	OperationErase
	OperationReadID
	OperationReadSFDP
	OperationReadRegister
	OperationWriteRegister
)

var operationNames = [...]string{
	OperationNone:          "None",
	OperationRead:          "Read",
	OperationReadFast:      "ReadFast",
	OperationProgram:       "Program",
	OperationErase:         "Erase",
	OperationReadID:        "ReadID",
	OperationReadSFDP:      "ReadSFDP",
	OperationReadRegister:  "ReadRegister",
	OperationWriteRegister: "WriteRegister",
}

func (o OperationType) String() string {
	if int(o) < len(operationNames) {
		return operationNames[o]
	}
	return fmt.Sprintf("OperationType(%d)", int(o))
}

// IsMemoryAccess reports whether the operation addresses the memory array.
func (o OperationType) IsMemoryAccess() bool {
	switch o {
	case OperationRead, OperationReadFast, OperationProgram, OperationErase:
		return true
	}
	return false
}

type OperationState int

const (
	StateRecognizeOperation OperationState = iota
	StateAccumulateCommandAddressBytes
	StateAccumulateNoDataCommandAddressBytes
	StateHandleCommand
	StateHandleNoDataCommand
)

var stateNames = [...]string{
	StateRecognizeOperation:                  "RecognizeOperation",
	StateAccumulateCommandAddressBytes:       "AccumulateCommandAddressBytes",
	StateAccumulateNoDataCommandAddressBytes: "AccumulateNoDataCommandAddressBytes",
	StateHandleCommand:                       "HandleCommand",
	StateHandleNoDataCommand:                 "HandleNoDataCommand",
}

func (s OperationState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("OperationState(%d)", int(s))
}

type EraseSize int

const (
	EraseSubsector4K EraseSize = iota
	EraseSubsector32K
	EraseSector
	EraseDie
)

func (e EraseSize) String() string {
	switch e {
	case EraseSubsector4K:
		return "Subsector4K"
	case EraseSubsector32K:
		return "Subsector32K"
	case EraseSector:
		return "Sector"
	case EraseDie:
		return "Die"
	}
	return fmt.Sprintf("EraseSize(%d)", int(e))
}

// DecodedOperation is the command currently being clocked in. There is
// exactly one per device and it is reset on every chip deselect.
type DecodedOperation struct {
	Operation OperationType
	State     OperationState

	AddressLength           int
	AddressBytesAccumulated int
	ExecutionAddress        uint32

	CommandBytesHandled int
	DummyBytesRemaining int

	EraseSize EraseSize
	Register  Register
}

// TryAccumulateAddress shifts one address byte in, most significant byte
// first, and reports whether the address is now complete.
func (d *DecodedOperation) TryAccumulateAddress(data byte) bool {
	d.ExecutionAddress = d.ExecutionAddress<<8 | uint32(data)
	d.AddressBytesAccumulated++
	return d.AddressBytesAccumulated >= d.AddressLength
}

func (d DecodedOperation) String() string {
	s := fmt.Sprintf("Operation: %s, State: %s", d.Operation, d.State)
	if d.AddressLength > 0 {
		s += fmt.Sprintf(", Address: 0x%X (%d bytes)", d.ExecutionAddress, d.AddressLength)
	}
	if d.Operation == OperationErase {
		s += ", EraseSize: " + d.EraseSize.String()
	}
	if d.Operation == OperationReadRegister || d.Operation == OperationWriteRegister {
		s += ", Register: " + d.Register.String()
	}
	return s + fmt.Sprintf(", BytesHandled: %d, DummyRemaining: %d", d.CommandBytesHandled, d.DummyBytesRemaining)
}
