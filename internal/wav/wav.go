// Package wav reads and writes the subset of the RIFF/WAVE container that
// the analyzer works with: 16-bit PCM, mono or stereo. Stereo input is
// downmixed to mono on decode so that every downstream consumer sees a
// single channel.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voxgate/pkg/audio"
)

var (
	// ErrNotWAV marks input that is not a RIFF/WAVE container at all.
	ErrNotWAV = errors.New("wav: not a RIFF/WAVE file")
	// ErrUnsupported marks well-formed WAV files whose encoding is outside
	// the 16-bit PCM mono/stereo subset.
	ErrUnsupported = errors.New("wav: unsupported encoding")
)

const headerSize = 44

// File is a decoded WAV file. PCM always holds little-endian mono 16-bit
// samples; stereo sources are downmixed during Decode.
type File struct {
	Format audio.Format
	PCM    []byte
}

// NumSamples returns the number of mono samples in the file.
func (f *File) NumSamples() int {
	return len(f.PCM) / 2
}

// Duration returns the play time of the decoded audio.
func (f *File) Duration() time.Duration {
	if f.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(f.NumSamples()) * int64(time.Second) / int64(f.Format.SampleRate))
}

// Samples decodes the full file into normalised float samples in [-1, 1).
func (f *File) Samples() []float64 {
	out := make([]float64, f.NumSamples())
	audio.SamplesFromPCM16(out, f.PCM)
	return out
}

// Clip returns the PCM bytes covering the sample range [from, to). The
// bounds are clamped to the file, so callers can pass estimates derived
// from block indices without pre-checking.
func (f *File) Clip(from, to int) []byte {
	n := f.NumSamples()
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if from >= to {
		return nil
	}
	return f.PCM[from*2 : to*2]
}

// Decode parses a WAV file. It scans the RIFF chunk list rather than
// assuming a fixed 44-byte layout, since files written by common editors
// carry LIST/INFO chunks between fmt and data.
func Decode(data []byte) (*File, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrNotWAV)
	}

	var (
		haveFmt    bool
		channels   int
		sampleRate int
		pcm        []byte
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := data[off+8:]
		if size > len(body) {
			// Some encoders write a data size covering bytes that were
			// never flushed. Truncate instead of rejecting the file.
			size = len(body)
		}
		body = body[:size]

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too short (%d bytes)", ErrNotWAV, len(body))
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 {
				return nil, fmt.Errorf("%w: audio format %d (only PCM is supported)", ErrUnsupported, format)
			}
			if bits := binary.LittleEndian.Uint16(body[14:16]); bits != 16 {
				return nil, fmt.Errorf("%w: %d bits per sample (only 16 is supported)", ErrUnsupported, bits)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			if channels != 1 && channels != 2 {
				return nil, fmt.Errorf("%w: %d channels (only mono and stereo are supported)", ErrUnsupported, channels)
			}
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			if sampleRate <= 0 {
				return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupported, sampleRate)
			}
			haveFmt = true
		case "data":
			pcm = body
		}

		// Chunks are word-aligned; odd sizes are followed by a pad byte.
		off += 8 + size + size&1
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrNotWAV)
	}
	if pcm == nil {
		return nil, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
	}

	if channels == 2 {
		pcm = audio.StereoToMono(pcm)
	}

	return &File{
		Format: audio.Format{SampleRate: sampleRate, Channels: 1},
		PCM:    pcm,
	}, nil
}

// Encode wraps mono little-endian 16-bit PCM bytes in a WAV container.
func Encode(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("wav: cannot encode empty pcm data")
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("wav: pcm data has odd length %d", len(pcm))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(pcm))
	out := make([]byte, headerSize+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataSize)
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(out[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate)*2) // byte rate
	binary.LittleEndian.PutUint16(out[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(out[34:36], 16)                   // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)
	copy(out[headerSize:], pcm)

	return out, nil
}
