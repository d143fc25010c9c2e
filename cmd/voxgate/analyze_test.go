package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/voxgate/internal/wav"
)

// writeToneWAV writes a 3s 16kHz mono file: 1s silence, 1s constant tone at
// 0.25 amplitude, 1s silence.
func writeToneWAV(t *testing.T) string {
	t.Helper()
	var pcm []byte
	pcm = append(pcm, constPCM(0, 16000)...)
	pcm = append(pcm, constPCM(0.25, 16000)...)
	pcm = append(pcm, constPCM(0, 16000)...)

	data, err := wav.Encode(pcm, 16000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestAnalyzeCommand_JSONReport(t *testing.T) {
	path := writeToneWAV(t)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"analyze", path, "--json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var report analyzeReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal report: %v\n%s", err, out.String())
	}

	if report.Profile != "built-in" {
		t.Errorf("Profile = %q, want built-in without a config file", report.Profile)
	}
	if report.SampleRate != 16000 || report.BlockSize != 512 {
		t.Errorf("format = %dHz / %d samples, want 16000 / 512", report.SampleRate, report.BlockSize)
	}
	if len(report.Segments) != 1 {
		t.Fatalf("got %d segments, want 1: %+v", len(report.Segments), report.Segments)
	}

	// The tone spans samples 16000..32000. With 32ms blocks, default onset 3
	// and offset 8, the acoustic boundaries land on blocks 31..62.
	approx := func(got, want float64) bool { return math.Abs(got-want) < 1e-6 }
	seg := report.Segments[0]
	if !approx(seg.StartSeconds, 0.992) {
		t.Errorf("segment start = %v, want 0.992", seg.StartSeconds)
	}
	if !approx(seg.EndSeconds, 2.016) {
		t.Errorf("segment end = %v, want 2.016", seg.EndSeconds)
	}
	if seg.PeakRMS != 0.25 {
		t.Errorf("PeakRMS = %v, want 0.25", seg.PeakRMS)
	}
	if !approx(report.SpeechRatio, 1.024/3.0) {
		t.Errorf("SpeechRatio = %v, want %v", report.SpeechRatio, 1.024/3.0)
	}
}

func TestAnalyzeCommand_ExtractsSegments(t *testing.T) {
	path := writeToneWAV(t)
	dir := filepath.Join(t.TempDir(), "clips")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"analyze", path, "--extract-dir", dir})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "segment-01.wav"))
	if err != nil {
		t.Fatalf("read extracted segment: %v", err)
	}
	clip, err := wav.Decode(data)
	if err != nil {
		t.Fatalf("decode extracted segment: %v", err)
	}
	if clip.Format.SampleRate != 16000 {
		t.Errorf("clip sample rate = %d, want 16000", clip.Format.SampleRate)
	}
	// Blocks 31..62 inclusive: 32 blocks of 512 samples.
	if clip.NumSamples() != 32*512 {
		t.Errorf("clip holds %d samples, want %d", clip.NumSamples(), 32*512)
	}

	if !strings.Contains(out.String(), "segment-01.wav") {
		t.Errorf("table does not mention the extracted file:\n%s", out.String())
	}
}

func TestAnalyzeCommand_NoSpeech(t *testing.T) {
	data, err := wav.Encode(constPCM(0, 8000), 16000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "silence.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"analyze", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "No speech detected") {
		t.Errorf("output = %q, want a no-speech notice", out.String())
	}
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"analyze", filepath.Join(t.TempDir(), "missing.wav")})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestAnalyzeCommand_UnknownProfile(t *testing.T) {
	path := writeToneWAV(t)

	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"analyze", path, "--profile", "studio"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
	if !strings.Contains(err.Error(), "studio") {
		t.Errorf("error %q does not name the missing profile", err)
	}
}
