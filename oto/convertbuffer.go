package oto

import (
	"encoding/binary"
	"math"
)

// FloatBufferTo16BitLE converts float samples to 16-bit little-endian
// integers, appending to dst. Samples outside [-1, 1] are clipped. Passing a
// dst with enough capacity avoids allocation.
func FloatBufferTo16BitLE(src []float32, dst []byte) []byte {
	for _, v := range src {
		var uv int16
		switch {
		case v < -1.0:
			uv = -math.MaxInt16
		case v > 1.0:
			uv = math.MaxInt16
		default:
			uv = int16(v * math.MaxInt16)
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(uv))
	}
	return dst
}
