package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/vad"
)

func newFramesCommand() *cobra.Command {
	var (
		durationStr string
		blockSize   int
		rate        int
	)

	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Convert a debounce duration into block counts",
		Long: `Detector onset and offset debounce are counted in blocks, not wall-clock
time. This command shows how a duration maps onto block counts for common
block sizes, including the rounding the ceiling conversion applies.

Examples:
  voxgate frames --duration 200ms
  voxgate frames --duration 40ms --block 960 --rate 48000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(durationStr)
			if err != nil {
				return fmt.Errorf("invalid --duration %q: %w", durationStr, err)
			}
			if d <= 0 {
				return fmt.Errorf("--duration must be positive, got %s", d)
			}
			if rate <= 0 {
				return fmt.Errorf("--rate must be positive, got %d", rate)
			}

			sizes := []int{128, 256, 512, 960, 1024}
			if blockSize > 0 {
				sizes = []int{blockSize}
			}

			rows := make([]table.Row, 0, len(sizes))
			for _, size := range sizes {
				bd := audio.Format{SampleRate: rate, Channels: 1}.BlockDuration(size)
				frames := vad.FramesForDuration(d, bd)
				rows = append(rows, table.Row{
					size,
					bd.String(),
					frames,
					(time.Duration(frames) * bd).String(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				table.Row{"Block size", "Block duration", "Frames", "Effective debounce"},
				rows, 1, 3))
			return nil
		},
	}

	cmd.Flags().StringVar(&durationStr, "duration", "", "debounce duration to convert (e.g. 200ms)")
	cmd.Flags().IntVar(&blockSize, "block", 0, "single block size in samples (default: a table of common sizes)")
	cmd.Flags().IntVar(&rate, "rate", 16000, "sample rate in Hz")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}
