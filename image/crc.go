package image

import (
	"encoding/binary"

	"github.com/snksoft/crc"
)

var crcTable *crc.Table

func init() {
	crcTable = crc.NewTable(crc.CRC32)
}

func crcCalculateBlock(data []byte) uint32 {
	h := crc.NewHashWithTable(crcTable)
	h.Update(data)

	return h.CRC32()
}

func crcWriteCheck(slice []byte, value uint32, valid bool, doWrite bool) bool {
	if len(slice) < 4 {
		panic("slice length invalid")
	}

	orig := binary.BigEndian.Uint32(slice)
	if doWrite {
		binary.BigEndian.PutUint32(slice, value)
	}
	return orig == value && valid
}
