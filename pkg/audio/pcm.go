package audio

// SamplesFromPCM16 decodes little-endian 16-bit PCM bytes into float
// samples in [-1, 1), normalising by 32768. It fills dst with up to
// min(len(dst), len(pcm)/2) samples and returns the number written. A
// trailing odd byte in pcm is ignored.
//
// dst is caller-owned so that hot paths can reuse one buffer across calls
// instead of allocating per block.
func SamplesFromPCM16(dst []float64, pcm []byte) int {
	n := len(pcm) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		dst[i] = float64(s) / 32768.0
	}
	return n
}

// StereoToMono downmixes interleaved 16-bit stereo PCM to mono by averaging
// each L+R pair. Uses int32 arithmetic to prevent overflow and clamps the
// result to the int16 range. Input must be little-endian; each stereo frame
// is 4 bytes.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		left := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		right := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (left + right) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}
