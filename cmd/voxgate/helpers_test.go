package main

import "encoding/binary"

// constPCM builds little-endian PCM16 bytes holding n samples at a constant
// amplitude. Power-of-two levels survive the int16 quantisation exactly, so
// a constant block's RMS equals the level.
func constPCM(level float64, n int) []byte {
	sample := int16(level * 32768)
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}
