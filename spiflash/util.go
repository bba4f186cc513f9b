package spiflash

func completeIO(offset uint32, buf []byte, f func(offset uint32, buf []byte) (int, error)) (int, error) {
	index := 0

	for len(buf) > 0 {
		n, err := f(offset, buf)
		index += n
		offset += uint32(n)

		if err != nil {
			return index, err
		}

		buf = buf[n:]
	}

	return index, nil
}

// pageCrossLength limits length so that a write starting at offset stays
// inside one page.
func pageCrossLength(offset uint32, length uint32, pageSize uint32) int {
	left := pageSize - offset%pageSize
	if length < left {
		return int(length)
	}
	return int(left)
}
