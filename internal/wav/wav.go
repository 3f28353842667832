// Package wav encodes rendered stereo audio as a 32-bit IEEE-float WAV
// file, the render-to-file side of cmd/kunquatctl's CLI surface.
// Grounded on the teacher's offline.go EncodeWAVFloat32LE, adapted from a
// single interleaved buffer to the core's separate L/R output buffers.
package wav

import (
	"encoding/binary"
	"math"
)

const (
	headerSize  = 44
	bitsPerSamp = 32
	fmtFloat    = 3
)

// Encode builds a complete WAV file (header plus interleaved data) from
// separate left/right channel buffers at the given sample rate. len(l)
// must equal len(r).
func Encode(l, r []float32, sampleRate int) []byte {
	frames := len(l)
	channels := 2
	dataSize := frames * channels * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize

	out := make([]byte, headerSize+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], fmtFloat)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], bitsPerSamp)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))

	pos := headerSize
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint32(out[pos:], math.Float32bits(l[i]))
		binary.LittleEndian.PutUint32(out[pos+4:], math.Float32bits(r[i]))
		pos += 8
	}
	return out
}
