package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/MrWong99/voxgate/internal/stream"
	"github.com/MrWong99/voxgate/internal/wav"
	"github.com/MrWong99/voxgate/pkg/vad"
)

// analyzeReport is the --json output of the analyze command.
type analyzeReport struct {
	File            string          `json:"file"`
	SampleRate      int             `json:"sample_rate"`
	DurationSeconds float64         `json:"duration_seconds"`
	BlockSize       int             `json:"block_size"`
	Profile         string          `json:"profile"`
	SpeechSeconds   float64         `json:"speech_seconds"`
	SpeechRatio     float64         `json:"speech_ratio"`
	Segments        []segmentReport `json:"segments"`
}

type segmentReport struct {
	Index           int     `json:"index"`
	StartSeconds    float64 `json:"start_seconds"`
	EndSeconds      float64 `json:"end_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	PeakRMS         float64 `json:"peak_rms"`
	File            string  `json:"file,omitempty"`
}

func newAnalyzeCommand(opts *rootOptions) *cobra.Command {
	var (
		profileName string
		jsonOut     bool
		extractDir  string
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Detect speech segments in a WAV file",
		Long: `Analyze runs the detector over a 16-bit PCM WAV file (mono or stereo) and
reports the speech segments it finds. Stereo files are downmixed before
detection.

Examples:
  voxgate analyze recording.wav
  voxgate analyze recording.wav --profile push-to-talk --json
  voxgate analyze recording.wav --extract-dir ./clips`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if _, err := opts.installLogger(cfg); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			file, err := wav.Decode(data)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			blockSize := cfg.Input.BlockSize
			blockDuration := file.Format.BlockDuration(blockSize)
			detCfg, profile, err := resolveProfile(cfg, profileName, blockDuration)
			if err != nil {
				return err
			}
			det, err := vad.New(detCfg)
			if err != nil {
				return fmt.Errorf("profile %q: %w", profile, err)
			}

			// Offline runs read the assembled segments, so the live event
			// stream stays disabled.
			sess, err := stream.NewSession(stream.SessionConfig{
				ID:        "analyze",
				Format:    file.Format,
				BlockSize: blockSize,
				Processor: det,
			}, stream.WithEventBuffer(0))
			if err != nil {
				return err
			}
			if _, err := sess.Write(file.PCM); err != nil {
				return err
			}
			if err := sess.Close(); err != nil {
				return err
			}
			segs := sess.Segments()

			report := analyzeReport{
				File:            args[0],
				SampleRate:      file.Format.SampleRate,
				DurationSeconds: file.Duration().Seconds(),
				BlockSize:       blockSize,
				Profile:         profile,
				Segments:        make([]segmentReport, 0, len(segs)),
			}
			var speech time.Duration
			for i, seg := range segs {
				speech += seg.Duration()
				report.Segments = append(report.Segments, segmentReport{
					Index:           i + 1,
					StartSeconds:    seg.Start.Seconds(),
					EndSeconds:      seg.End.Seconds(),
					DurationSeconds: seg.Duration().Seconds(),
					PeakRMS:         seg.PeakRMS,
				})
			}
			report.SpeechSeconds = speech.Seconds()
			if total := file.Duration(); total > 0 {
				report.SpeechRatio = speech.Seconds() / total.Seconds()
			}

			if extractDir != "" {
				if err := extractSegments(file, segs, blockSize, extractDir, report.Segments); err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			if len(segs) == 0 {
				fmt.Fprintf(out, "No speech detected in %s (%s, profile %s)\n",
					args[0], file.Duration().Round(time.Millisecond), profile)
				return nil
			}

			rows := make([]table.Row, 0, len(segs))
			for _, sr := range report.Segments {
				row := table.Row{
					sr.Index,
					formatSeconds(sr.StartSeconds),
					formatSeconds(sr.EndSeconds),
					formatSeconds(sr.DurationSeconds),
					fmt.Sprintf("%.4f", sr.PeakRMS),
				}
				if extractDir != "" {
					row = append(row, sr.File)
				}
				rows = append(rows, row)
			}
			header := table.Row{"#", "Start", "End", "Duration", "Peak RMS"}
			if extractDir != "" {
				header = append(header, "File")
			}
			fmt.Fprintln(out, renderTable(header, rows, 1, 2, 3, 4, 5))
			fmt.Fprintf(out, "Speech: %s of %s (%.1f%%) across %d segments, profile %s\n",
				speech.Round(time.Millisecond),
				file.Duration().Round(time.Millisecond),
				report.SpeechRatio*100,
				len(segs),
				profile,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "detector profile from the config file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit a JSON report instead of the table")
	cmd.Flags().StringVar(&extractDir, "extract-dir", "", "write one WAV file per speech segment into this directory")

	return cmd
}

// extractSegments writes each segment's samples as a standalone WAV file
// and records the file names in the report entries.
func extractSegments(file *wav.File, segs []stream.Segment, blockSize int, dir string, reports []segmentReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for i, seg := range segs {
		clip := file.Clip(int(seg.StartBlock)*blockSize, int(seg.EndBlock+1)*blockSize)
		data, err := wav.Encode(clip, file.Format.SampleRate)
		if err != nil {
			return fmt.Errorf("encode segment %d: %w", i+1, err)
		}
		name := fmt.Sprintf("segment-%02d.wav", i+1)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write segment %d: %w", i+1, err)
		}
		reports[i].File = name
	}
	return nil
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3fs", s)
}
