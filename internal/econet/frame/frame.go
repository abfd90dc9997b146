// Package frame implements the ecoNET wire framing: start/stop
// delimiters, little-endian header, CRC-16/CCITT trailer.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	StartByte byte = 0x68
	StopByte  byte = 0x16

	// headerLen is the framed portion counted by the length field:
	// destination(2) + source(2) + function(1).
	headerLen = 5

	// overhead is everything outside the length field's count:
	// start(1) + length(2) + crc(2) + stop(1).
	overhead = 6

	// MaxPayload bounds decode memory use. The device never emits
	// payloads anywhere near this; anything larger is line noise.
	MaxPayload = 1024
)

var (
	ErrNeedMoreData = errors.New("frame: need more data")
	ErrInvalidFrame = errors.New("frame: invalid frame")
	ErrPayloadSize  = errors.New("frame: payload too large")
)

// Frame is one complete wire message.
type Frame struct {
	Dest    uint16
	Src     uint16
	Func    byte
	Payload []byte
}

// CRC16 computes CRC-16/CCITT (poly 0x1021, zero seed, MSB-first,
// no final XOR) over data. The result goes on the wire big-endian,
// unlike every other multi-byte field.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Encode serializes f into its wire form. It never fails for a frame
// within MaxPayload.
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, ErrPayloadSize
	}
	length := uint16(headerLen + len(f.Payload))

	buf := make([]byte, 0, int(length)+overhead)
	buf = append(buf, StartByte)
	buf = binary.LittleEndian.AppendUint16(buf, length)
	buf = binary.LittleEndian.AppendUint16(buf, f.Dest)
	buf = binary.LittleEndian.AppendUint16(buf, f.Src)
	buf = append(buf, f.Func)
	buf = append(buf, f.Payload...)

	// CRC covers length..payload, excluding the start byte.
	crc := CRC16(buf[1:])
	buf = binary.BigEndian.AppendUint16(buf, crc)
	buf = append(buf, StopByte)
	return buf, nil
}

// Decode parses one frame from the front of buf, which must already be
// aligned on a StartByte (see Scan). It returns the number of bytes
// consumed on success. ErrNeedMoreData means the declared length
// extends past the available bytes; ErrInvalidFrame means the CRC or
// stop delimiter check failed and the caller should discard a single
// byte and resume scanning.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < 3 {
		return Frame{}, 0, ErrNeedMoreData
	}
	if buf[0] != StartByte {
		return Frame{}, 0, fmt.Errorf("%w: not aligned on start byte", ErrInvalidFrame)
	}

	length := binary.LittleEndian.Uint16(buf[1:3])
	if length < headerLen || int(length) > headerLen+MaxPayload {
		return Frame{}, 0, fmt.Errorf("%w: implausible length %d", ErrInvalidFrame, length)
	}
	total := int(length) + overhead
	if len(buf) < total {
		return Frame{}, 0, ErrNeedMoreData
	}

	// body = length field + framed content, the CRC input.
	body := buf[1 : 3+int(length)]
	wantCRC := binary.BigEndian.Uint16(buf[3+int(length) : 5+int(length)])
	if CRC16(body) != wantCRC {
		return Frame{}, 0, fmt.Errorf("%w: crc mismatch", ErrInvalidFrame)
	}
	if buf[total-1] != StopByte {
		return Frame{}, 0, fmt.Errorf("%w: missing stop byte", ErrInvalidFrame)
	}

	payload := make([]byte, int(length)-headerLen)
	copy(payload, buf[8:8+len(payload)])

	return Frame{
		Dest:    binary.LittleEndian.Uint16(buf[3:5]),
		Src:     binary.LittleEndian.Uint16(buf[5:7]),
		Func:    buf[7],
		Payload: payload,
	}, total, nil
}

// Scan returns the offset of the first StartByte in buf, or -1 when
// buf contains none and can be discarded wholesale.
func Scan(buf []byte) int {
	for i, b := range buf {
		if b == StartByte {
			return i
		}
	}
	return -1
}
