package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fermata-audio/scorefollow/align"
	"github.com/fermata-audio/scorefollow/config"
	"github.com/fermata-audio/scorefollow/features"
	"github.com/fermata-audio/scorefollow/transcode"
)

var (
	alignReference   string
	alignPerformance string
	alignBand        int
	alignOut         string
)

func init() {
	alignCmd.Flags().StringVar(&alignReference, "reference", "", "reference audio file (wav/mp3)")
	alignCmd.Flags().StringVar(&alignPerformance, "performance", "", "performance audio file (wav/mp3)")
	alignCmd.Flags().IntVar(&alignBand, "band", 0, "Sakoe-Chiba band half-width in frames (0 = unconstrained)")
	alignCmd.Flags().StringVar(&alignOut, "out", "", "output file for the JSON report (default stdout)")
	alignCmd.MarkFlagRequired("reference")
	alignCmd.MarkFlagRequired("performance")
	rootCmd.AddCommand(alignCmd)
}

type alignReport struct {
	Result     *align.DTWResult   `json:"result"`
	TempoCurve []align.TempoPoint `json:"tempo_curve"`
}

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Offline-align a performance recording against a reference",
	Long: `Decodes both recordings, extracts CENS chroma sequences and computes the
optimal whole-sequence alignment, emitting the warp path and the implied
tempo curve as JSON. Debug tooling; live tracking uses the online engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultFollowerConfig()

		refSeq, err := loadSequence(alignReference, cfg)
		if err != nil {
			return err
		}
		perfSeq, err := loadSequence(alignPerformance, cfg)
		if err != nil {
			return err
		}

		dtw := align.NewDTWWithParams(alignBand, cfg.DiagWeight)
		result, err := dtw.Align(perfSeq, refSeq)
		if err != nil {
			return fmt.Errorf("alignment failed: %w", err)
		}

		stepSeconds := float64(cfg.HopLength) / float64(cfg.SampleRate)
		report := alignReport{
			Result:     result,
			TempoCurve: align.TempoCurve(result.Path, stepSeconds, 8),
		}

		return writeJSON(report, alignOut)
	},
}

// loadSequence decodes an audio file and streams it through the feature
// extractor configured for the session
func loadSequence(filename string, cfg config.FollowerConfig) (*features.Sequence, error) {
	decoder := transcode.NewDecoder(cfg.SampleRate)
	audio, err := decoder.DecodeFile(filename)
	if err != nil {
		return nil, err
	}

	extractor, err := features.NewExtractor(features.Kind(cfg.FeatureKind), cfg.SampleRate, cfg.WindowLength, cfg.TuningFreq)
	if err != nil {
		return nil, err
	}

	return features.NewSequenceFromBuffer(extractor, cfg.HopLength, audio.PCM)
}

// writeJSON emits an indented JSON document to a file or stdout
func writeJSON(v any, out string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}
