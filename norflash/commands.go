package norflash

import "fmt"

// Command is the first byte of every transaction.
type Command byte

/* Command set of the Micron MT25Q family, which most vendors follow */
const (
	CmdResetEnable Command = 0x66
	CmdResetMemory Command = 0x99

	CmdReadID                            Command = 0x9F
	CmdMultipleIoReadID                  Command = 0xAF
	CmdReadSerialFlashDiscoveryParameter Command = 0x5A

	CmdRead                       Command = 0x03
	CmdFastRead                   Command = 0x0B
	CmdDualOutputFastRead         Command = 0x3B
	CmdDualInputOutputFastRead    Command = 0xBB
	CmdQuadOutputFastRead         Command = 0x6B
	CmdQuadInputOutputFastRead    Command = 0xEB
	CmdDtrFastRead                Command = 0x0D
	CmdDtrDualOutputFastRead      Command = 0x3D
	CmdDtrDualInputOutputFastRead Command = 0xBD
	CmdDtrQuadOutputFastRead      Command = 0x6D
	CmdDtrQuadInputOutputFastRead Command = 0xED
	CmdQuadInputOutputWordRead    Command = 0xE7

	CmdRead4byte                       Command = 0x13
	CmdFastRead4byte                   Command = 0x0C
	CmdDualOutputFastRead4byte         Command = 0x3C
	CmdDualInputOutputFastRead4byte    Command = 0xBC
	CmdQuadOutputFastRead4byte         Command = 0x6C
	CmdQuadInputOutputFastRead4byte    Command = 0xEC
	CmdDtrFastRead4byte                Command = 0x0E
	CmdDtrDualInputOutputFastRead4byte Command = 0xBE
	CmdDtrQuadInputOutputFastRead4byte Command = 0xEE

	CmdWriteEnable  Command = 0x06
	CmdWriteDisable Command = 0x04

	CmdReadStatusRegister                        Command = 0x05
	CmdReadConfigurationRegister                 Command = 0x15
	CmdReadFlagStatusRegister                    Command = 0x70
	CmdReadNonVolatileConfigurationRegister      Command = 0xB5
	CmdReadVolatileConfigurationRegister         Command = 0x85
	CmdReadEnhancedVolatileConfigurationRegister Command = 0x65
	CmdReadExtendedAddressRegister               Command = 0xC8
	CmdReadGeneralPurposeReadRegister            Command = 0x96

	CmdWriteStatusRegister                        Command = 0x01
	CmdWriteNonVolatileConfigurationRegister      Command = 0xB1
	CmdWriteVolatileConfigurationRegister         Command = 0x81
	CmdWriteEnhancedVolatileConfigurationRegister Command = 0x61
	CmdWriteExtendedAddressRegister               Command = 0xC5

	CmdClearFlagStatusRegister Command = 0x50

	CmdPageProgram                  Command = 0x02
	CmdDualInputFastProgram         Command = 0xA2
	CmdExtendedDualInputFastProgram Command = 0xD2
	CmdQuadInputFastProgram         Command = 0x32
	CmdExtendedQuadInputFastProgram Command = 0x38

	CmdPageProgram4byte                  Command = 0x12
	CmdQuadInputFastProgram4byte         Command = 0x34
	CmdQuadInputExtendedFastProgram4byte Command = 0x3E

	CmdSubsectorErase32kb Command = 0x52
	CmdSubsectorErase4kb  Command = 0x20
	CmdSectorErase        Command = 0xD8
	CmdBulkErase          Command = 0x60
	CmdChipErase          Command = 0xC7
	CmdDieErase           Command = 0xC4

	CmdSectorErase4byte        Command = 0xDC
	CmdSubsectorErase4byte4kb  Command = 0x21
	CmdSubsectorErase4byte32kb Command = 0x5C

	CmdProgramEraseSuspend Command = 0x75
	CmdProgramEraseResume  Command = 0x7A

	CmdReadOtpArray    Command = 0x4B
	CmdProgramOtpArray Command = 0x42

	CmdEnter4byteAddressMode Command = 0xB7
	CmdExit4byteAddressMode  Command = 0xE9

	CmdEnterQuadInputOutputMode Command = 0x35
	CmdResetQuadInputOutputMode Command = 0xF5

	CmdEnterDeepPowerDown       Command = 0xB9
	CmdReleaseFromDeepPowerdown Command = 0xAB

	CmdReadSectorProtection     Command = 0x2D
	CmdProgramSectorProtection  Command = 0x2C
	CmdReadVolatileLockBits     Command = 0xE8
	CmdWriteVolatileLockBits    Command = 0xE5
	CmdReadNonvolatileLockBits  Command = 0xE2
	CmdWriteNonvolatileLockBits Command = 0xE3
	CmdEraseNonvolatileLockBits Command = 0xE4
	CmdReadGlobalFreezeBit      Command = 0xA7
	CmdWriteGlobalFreezeBit     Command = 0xA6
	CmdReadPassword             Command = 0x27
	CmdWritePassword            Command = 0x28
	CmdUnlockPassword           Command = 0x29

	CmdReadVolatileLockBits4byte  Command = 0xE0
	CmdWriteVolatileLockBits4byte Command = 0xE1

	CmdInterfaceActivation Command = 0x9B
)

var commandNames = map[Command]string{
	CmdResetEnable:                                "ResetEnable",
	CmdResetMemory:                                "ResetMemory",
	CmdReadID:                                     "ReadID",
	CmdMultipleIoReadID:                           "MultipleIoReadID",
	CmdReadSerialFlashDiscoveryParameter:          "ReadSerialFlashDiscoveryParameter",
	CmdRead:                                       "Read",
	CmdFastRead:                                   "FastRead",
	CmdDualOutputFastRead:                         "DualOutputFastRead",
	CmdDualInputOutputFastRead:                    "DualInputOutputFastRead",
	CmdQuadOutputFastRead:                         "QuadOutputFastRead",
	CmdQuadInputOutputFastRead:                    "QuadInputOutputFastRead",
	CmdDtrFastRead:                                "DtrFastRead",
	CmdDtrDualOutputFastRead:                      "DtrDualOutputFastRead",
	CmdDtrDualInputOutputFastRead:                 "DtrDualInputOutputFastRead",
	CmdDtrQuadOutputFastRead:                      "DtrQuadOutputFastRead",
	CmdDtrQuadInputOutputFastRead:                 "DtrQuadInputOutputFastRead",
	CmdQuadInputOutputWordRead:                    "QuadInputOutputWordRead",
	CmdRead4byte:                                  "Read4byte",
	CmdFastRead4byte:                              "FastRead4byte",
	CmdDualOutputFastRead4byte:                    "DualOutputFastRead4byte",
	CmdDualInputOutputFastRead4byte:               "DualInputOutputFastRead4byte",
	CmdQuadOutputFastRead4byte:                    "QuadOutputFastRead4byte",
	CmdQuadInputOutputFastRead4byte:               "QuadInputOutputFastRead4byte",
	CmdDtrFastRead4byte:                           "DtrFastRead4byte",
	CmdDtrDualInputOutputFastRead4byte:            "DtrDualInputOutputFastRead4byte",
	CmdDtrQuadInputOutputFastRead4byte:            "DtrQuadInputOutputFastRead4byte",
	CmdWriteEnable:                                "WriteEnable",
	CmdWriteDisable:                               "WriteDisable",
	CmdReadStatusRegister:                         "ReadStatusRegister",
	CmdReadConfigurationRegister:                  "ReadConfigurationRegister",
	CmdReadFlagStatusRegister:                     "ReadFlagStatusRegister",
	CmdReadNonVolatileConfigurationRegister:       "ReadNonVolatileConfigurationRegister",
	CmdReadVolatileConfigurationRegister:          "ReadVolatileConfigurationRegister",
	CmdReadEnhancedVolatileConfigurationRegister:  "ReadEnhancedVolatileConfigurationRegister",
	CmdReadExtendedAddressRegister:                "ReadExtendedAddressRegister",
	CmdReadGeneralPurposeReadRegister:             "ReadGeneralPurposeReadRegister",
	CmdWriteStatusRegister:                        "WriteStatusRegister",
	CmdWriteNonVolatileConfigurationRegister:      "WriteNonVolatileConfigurationRegister",
	CmdWriteVolatileConfigurationRegister:         "WriteVolatileConfigurationRegister",
	CmdWriteEnhancedVolatileConfigurationRegister: "WriteEnhancedVolatileConfigurationRegister",
	CmdWriteExtendedAddressRegister:               "WriteExtendedAddressRegister",
	CmdClearFlagStatusRegister:                    "ClearFlagStatusRegister",
	CmdPageProgram:                                "PageProgram",
	CmdDualInputFastProgram:                       "DualInputFastProgram",
	CmdExtendedDualInputFastProgram:               "ExtendedDualInputFastProgram",
	CmdQuadInputFastProgram:                       "QuadInputFastProgram",
	CmdExtendedQuadInputFastProgram:               "ExtendedQuadInputFastProgram",
	CmdPageProgram4byte:                           "PageProgram4byte",
	CmdQuadInputFastProgram4byte:                  "QuadInputFastProgram4byte",
	CmdQuadInputExtendedFastProgram4byte:          "QuadInputExtendedFastProgram4byte",
	CmdSubsectorErase32kb:                         "SubsectorErase32kb",
	CmdSubsectorErase4kb:                          "SubsectorErase4kb",
	CmdSectorErase:                                "SectorErase",
	CmdBulkErase:                                  "BulkErase",
	CmdChipErase:                                  "ChipErase",
	CmdDieErase:                                   "DieErase",
	CmdSectorErase4byte:                           "SectorErase4byte",
	CmdSubsectorErase4byte4kb:                     "SubsectorErase4byte4kb",
	CmdSubsectorErase4byte32kb:                    "SubsectorErase4byte32kb",
	CmdProgramEraseSuspend:                        "ProgramEraseSuspend",
	CmdProgramEraseResume:                         "ProgramEraseResume",
	CmdReadOtpArray:                               "ReadOtpArray",
	CmdProgramOtpArray:                            "ProgramOtpArray",
	CmdEnter4byteAddressMode:                      "Enter4byteAddressMode",
	CmdExit4byteAddressMode:                       "Exit4byteAddressMode",
	CmdEnterQuadInputOutputMode:                   "EnterQuadInputOutputMode",
	CmdResetQuadInputOutputMode:                   "ResetQuadInputOutputMode",
	CmdEnterDeepPowerDown:                         "EnterDeepPowerDown",
	CmdReleaseFromDeepPowerdown:                   "ReleaseFromDeepPowerdown",
	CmdReadSectorProtection:                       "ReadSectorProtection",
	CmdProgramSectorProtection:                    "ProgramSectorProtection",
	CmdReadVolatileLockBits:                       "ReadVolatileLockBits",
	CmdWriteVolatileLockBits:                      "WriteVolatileLockBits",
	CmdReadNonvolatileLockBits:                    "ReadNonvolatileLockBits",
	CmdWriteNonvolatileLockBits:                   "WriteNonvolatileLockBits",
	CmdEraseNonvolatileLockBits:                   "EraseNonvolatileLockBits",
	CmdReadGlobalFreezeBit:                        "ReadGlobalFreezeBit",
	CmdWriteGlobalFreezeBit:                       "WriteGlobalFreezeBit",
	CmdReadPassword:                               "ReadPassword",
	CmdWritePassword:                              "WritePassword",
	CmdUnlockPassword:                             "UnlockPassword",
	CmdReadVolatileLockBits4byte:                  "ReadVolatileLockBits4byte",
	CmdWriteVolatileLockBits4byte:                 "WriteVolatileLockBits4byte",
	CmdInterfaceActivation:                        "InterfaceActivation",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", byte(c))
}
