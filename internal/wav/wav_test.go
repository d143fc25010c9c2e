package wav_test

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/voxgate/internal/wav"
)

// buildWAV hand-assembles a WAV file so Decode is tested against an
// independent encoding, not against wav.Encode.
func buildWAV(channels, sampleRate int, samples []int16, extraChunks ...[]byte) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	var body []byte
	fmtChunk := make([]byte, 8+16)
	copy(fmtChunk[0:4], "fmt ")
	binary.LittleEndian.PutUint32(fmtChunk[4:8], 16)
	binary.LittleEndian.PutUint16(fmtChunk[8:10], 1)
	binary.LittleEndian.PutUint16(fmtChunk[10:12], uint16(channels))
	binary.LittleEndian.PutUint32(fmtChunk[12:16], uint32(sampleRate))
	binary.LittleEndian.PutUint32(fmtChunk[16:20], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(fmtChunk[20:22], uint16(channels*2))
	binary.LittleEndian.PutUint16(fmtChunk[22:24], 16)
	body = append(body, fmtChunk...)

	for _, c := range extraChunks {
		body = append(body, c...)
	}

	dataChunk := make([]byte, 8)
	copy(dataChunk[0:4], "data")
	binary.LittleEndian.PutUint32(dataChunk[4:8], uint32(len(data)))
	body = append(body, dataChunk...)
	body = append(body, data...)

	out := make([]byte, 12)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(4+len(body)))
	copy(out[8:12], "WAVE")
	return append(out, body...)
}

func TestDecode_Mono(t *testing.T) {
	t.Parallel()
	data := buildWAV(1, 16000, []int16{100, -200, 300, -400, 500})

	f, err := wav.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Format.SampleRate != 16000 || f.Format.Channels != 1 {
		t.Errorf("format: got %v", f.Format)
	}
	if f.NumSamples() != 5 {
		t.Errorf("NumSamples: got %d, want 5", f.NumSamples())
	}
	samples := f.Samples()
	if samples[0] != 100.0/32768.0 || samples[1] != -200.0/32768.0 {
		t.Errorf("samples: got %v", samples[:2])
	}
}

func TestDecode_StereoDownmix(t *testing.T) {
	t.Parallel()
	// Two frames: (100, 300) and (-100, -300); averages 200 and -200.
	data := buildWAV(2, 48000, []int16{100, 300, -100, -300})

	f, err := wav.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Format.Channels != 1 {
		t.Errorf("channels after downmix: got %d, want 1", f.Format.Channels)
	}
	if f.NumSamples() != 2 {
		t.Fatalf("NumSamples: got %d, want 2", f.NumSamples())
	}
	samples := f.Samples()
	if samples[0] != 200.0/32768.0 || samples[1] != -200.0/32768.0 {
		t.Errorf("downmixed samples: got %v", samples)
	}
}

func TestDecode_SkipsForeignChunks(t *testing.T) {
	t.Parallel()
	list := make([]byte, 8+6)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 6)
	copy(list[8:], "INFOab")

	data := buildWAV(1, 8000, []int16{1, 2, 3}, list)
	f, err := wav.Decode(data)
	if err != nil {
		t.Fatalf("Decode with LIST chunk: %v", err)
	}
	if f.NumSamples() != 3 {
		t.Errorf("NumSamples: got %d, want 3", f.NumSamples())
	}
}

func TestDecode_NotWAV(t *testing.T) {
	t.Parallel()
	for _, data := range [][]byte{
		nil,
		[]byte("short"),
		[]byte("OggS\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"),
	} {
		if _, err := wav.Decode(data); !errors.Is(err, wav.ErrNotWAV) {
			t.Errorf("Decode(%q): got %v, want ErrNotWAV", data, err)
		}
	}
}

func TestDecode_UnsupportedEncodings(t *testing.T) {
	t.Parallel()

	floatFmt := buildWAV(1, 16000, []int16{1, 2})
	// Patch the audio format code to 3 (IEEE float).
	binary.LittleEndian.PutUint16(floatFmt[20:22], 3)
	if _, err := wav.Decode(floatFmt); !errors.Is(err, wav.ErrUnsupported) {
		t.Errorf("float format: got %v, want ErrUnsupported", err)
	}

	eightBit := buildWAV(1, 16000, []int16{1, 2})
	binary.LittleEndian.PutUint16(eightBit[34:36], 8)
	if _, err := wav.Decode(eightBit); !errors.Is(err, wav.ErrUnsupported) {
		t.Errorf("8-bit: got %v, want ErrUnsupported", err)
	}

	surround := buildWAV(6, 16000, []int16{1, 2, 3, 4, 5, 6})
	if _, err := wav.Decode(surround); !errors.Is(err, wav.ErrUnsupported) {
		t.Errorf("6 channels: got %v, want ErrUnsupported", err)
	}
}

func TestDecode_OverstatedDataSize(t *testing.T) {
	t.Parallel()
	data := buildWAV(1, 16000, []int16{1, 2, 3, 4})
	// Claim more data bytes than the file holds.
	binary.LittleEndian.PutUint32(data[40:44], 1000)

	f, err := wav.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.NumSamples() != 4 {
		t.Errorf("NumSamples: got %d, want 4 (truncated to real size)", f.NumSamples())
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	t.Parallel()
	pcm := make([]byte, 8)
	vals := []int16{1000, -1000, 32767, -32768}
	binary.LittleEndian.PutUint16(pcm[0:], uint16(vals[0]))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(vals[1]))
	binary.LittleEndian.PutUint16(pcm[4:], uint16(vals[2]))
	binary.LittleEndian.PutUint16(pcm[6:], uint16(vals[3]))

	encoded, err := wav.Encode(pcm, 24000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != 44+len(pcm) {
		t.Errorf("encoded size: got %d, want %d", len(encoded), 44+len(pcm))
	}

	f, err := wav.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode(Encode(...)): %v", err)
	}
	if f.Format.SampleRate != 24000 {
		t.Errorf("sample rate: got %d, want 24000", f.Format.SampleRate)
	}
	if string(f.PCM) != string(pcm) {
		t.Error("round-tripped PCM differs from input")
	}
}

func TestEncode_Invalid(t *testing.T) {
	t.Parallel()
	if _, err := wav.Encode(nil, 16000); err == nil {
		t.Error("expected error for empty pcm, got nil")
	}
	if _, err := wav.Encode([]byte{1, 2, 3}, 16000); err == nil {
		t.Error("expected error for odd pcm length, got nil")
	}
	if _, err := wav.Encode([]byte{1, 2}, 0); err == nil {
		t.Error("expected error for zero sample rate, got nil")
	}
}

func TestFile_Duration(t *testing.T) {
	t.Parallel()
	data := buildWAV(1, 16000, make([]int16, 16000))
	f, err := wav.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Duration() != time.Second {
		t.Errorf("Duration: got %v, want 1s", f.Duration())
	}
}

func TestFile_Clip(t *testing.T) {
	t.Parallel()
	data := buildWAV(1, 16000, []int16{1, 2, 3, 4, 5})
	f, err := wav.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if clip := f.Clip(1, 3); len(clip) != 4 {
		t.Errorf("Clip(1,3): got %d bytes, want 4", len(clip))
	}
	if clip := f.Clip(-5, 100); len(clip) != 10 {
		t.Errorf("Clip with out-of-range bounds: got %d bytes, want full file", len(clip))
	}
	if clip := f.Clip(3, 3); clip != nil {
		t.Errorf("Clip(3,3): got %d bytes, want nil", len(clip))
	}
}
