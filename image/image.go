// Package image stores flash contents as a snapshot file protected by
// CRC32 checksums.
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	HeaderLength = 32
	Version      = 1

	offsetVersion       = 4
	offsetErased        = 6
	offsetLength        = 8
	offsetContentCRC    = 16
	offsetHeaderCRC     = HeaderLength - 4
	offsetReservedStart = 20
)

var magic = []byte("NORF")

var (
	ErrorInvalidLength = errors.New("image length not valid")
	ErrorInvalidHeader = errors.New("header is not valid")
	ErrorInvalidCRC    = errors.New("CRC is not valid")
)

func makeHeader(img []byte, contentLength int, erased byte) {
	copy(img, magic)
	binary.BigEndian.PutUint16(img[offsetVersion:], Version)
	img[offsetErased] = erased
	binary.BigEndian.PutUint64(img[offsetLength:], uint64(contentLength))
}

func checksumInternal(img []byte, doWrite bool) bool {
	wasValid := true

	wasValid = crcWriteCheck(img[offsetContentCRC:], crcCalculateBlock(img[HeaderLength:]), wasValid, doWrite)

	/* The header CRC covers the content CRC, so it goes last */
	wasValid = crcWriteCheck(img[offsetHeaderCRC:], crcCalculateBlock(img[:offsetHeaderCRC]), wasValid, doWrite)

	return wasValid
}

// ChecksumUpdate recomputes both CRCs and reports whether they were correct.
func ChecksumUpdate(img []byte) bool {
	return checksumInternal(img, true)
}

func Validate(img []byte) error {
	if len(img) < HeaderLength {
		return ErrorInvalidLength
	}

	var hdr [offsetContentCRC]byte
	makeHeader(hdr[:], len(img)-HeaderLength, img[offsetErased])

	if !bytes.Equal(hdr[:], img[:len(hdr)]) {
		if bytes.Equal(hdr[:offsetLength], img[:offsetLength]) {
			return ErrorInvalidLength
		}
		return ErrorInvalidHeader
	}

	for _, m := range img[offsetReservedStart:offsetHeaderCRC] {
		if m != 0 {
			return ErrorInvalidHeader
		}
	}

	if !checksumInternal(img, false) {
		return ErrorInvalidCRC
	}

	return nil
}

// Build wraps content in a snapshot. erased is the fill value of the
// store the content came from.
func Build(content []byte, erased byte) []byte {
	img := make([]byte, HeaderLength+len(content))

	makeHeader(img, len(content), erased)
	copy(img[HeaderLength:], content)

	ChecksumUpdate(img)

	return img
}

// Extract validates img and returns the content and its erased value.
// The content aliases img.
func Extract(img []byte) ([]byte, byte, error) {
	if err := Validate(img); err != nil {
		return nil, 0, err
	}

	return img[HeaderLength:], img[offsetErased], nil
}
