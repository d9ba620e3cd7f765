package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fermata-audio/scorefollow/config"
	"github.com/fermata-audio/scorefollow/follower"
	"github.com/fermata-audio/scorefollow/transcode"
)

var (
	followReference   string
	followPerformance string
	followQuiet       bool
)

func init() {
	followCmd.Flags().StringVar(&followReference, "reference", "", "reference audio file (wav/mp3)")
	followCmd.Flags().StringVar(&followPerformance, "performance", "", "performance audio file (wav/mp3)")
	followCmd.Flags().BoolVar(&followQuiet, "quiet", false, "suppress per-frame output")
	followCmd.MarkFlagRequired("reference")
	followCmd.MarkFlagRequired("performance")
	rootCmd.AddCommand(followCmd)
}

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Simulate live score following over a recorded performance",
	Long: `Builds a follower session from the reference, then feeds the performance
recording through it frame by frame as a live microphone would, printing the
estimated reference time per frame and a session summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultFollowerConfig()

		sf, err := follower.New(followReference, cfg)
		if err != nil {
			return err
		}

		decoder := transcode.NewDecoder(cfg.SampleRate)
		audio, err := decoder.DecodeFile(followPerformance)
		if err != nil {
			return err
		}

		frames := 0
		var estimate float64
		for start := 0; start < len(audio.PCM); start += cfg.HopLength {
			end := start + cfg.WindowLength
			if end > len(audio.PCM) {
				end = len(audio.PCM)
			}

			estimate, err = sf.Step(audio.PCM[start:end])
			if err != nil {
				return fmt.Errorf("step at frame %d: %w", frames, err)
			}
			frames++

			if !followQuiet {
				liveTime := float64(frames) * sf.StepSeconds()
				fmt.Printf("frame %5d  live %8.3fs  reference %8.3fs\n", frames-1, liveTime, estimate)
			}
		}

		fmt.Printf("session %s: %d frames, final reference estimate %.3fs of %.3fs\n",
			sf.SessionID(), frames, estimate, sf.ReferenceDuration())
		return nil
	},
}
