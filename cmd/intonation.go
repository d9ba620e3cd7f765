package cmd

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fermata-audio/scorefollow/config"
	"github.com/fermata-audio/scorefollow/follower"
	"github.com/fermata-audio/scorefollow/intonation"
	"github.com/fermata-audio/scorefollow/notes"
	"github.com/fermata-audio/scorefollow/transcode"
)

var (
	intonationReference   string
	intonationPerformance string
	intonationTable       string
)

func init() {
	intonationCmd.Flags().StringVar(&intonationReference, "reference", "", "reference audio file (wav/mp3)")
	intonationCmd.Flags().StringVar(&intonationPerformance, "performance", "", "performance audio file (wav/mp3)")
	intonationCmd.Flags().StringVar(&intonationTable, "table", "", "note table: CSV (beat, midi_pitch, reference_time[, live_time]) or MIDI file")
	intonationCmd.MarkFlagRequired("reference")
	intonationCmd.MarkFlagRequired("performance")
	intonationCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(intonationCmd)
}

var intonationCmd = &cobra.Command{
	Use:   "intonation",
	Short: "Report per-note intonation for a recorded performance",
	Long: `Tracks the performance against the reference, assigns each frame to the
expected note from the table via the alignment estimate, and reports the
median signed semitone error and feedback color per note.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultFollowerConfig()
		intoCfg := config.DefaultIntonationConfig()
		intoCfg.SampleRate = cfg.SampleRate
		intoCfg.WindowLength = cfg.WindowLength

		table, err := loadTable(intonationTable)
		if err != nil {
			return err
		}
		if table.Len() == 0 {
			return fmt.Errorf("note table %s has no rows", intonationTable)
		}

		sf, err := follower.New(intonationReference, cfg)
		if err != nil {
			return err
		}

		decoder := transcode.NewDecoder(cfg.SampleRate)
		audio, err := decoder.DecodeFile(intonationPerformance)
		if err != nil {
			return err
		}

		estimator := intonation.NewEstimator(intoCfg)
		aggregator := intonation.NewAggregator(estimator)

		currentNote := -1
		refDuration := sf.ReferenceDuration()

		emit := func(report intonation.NoteReport) {
			note := table.At(report.NoteIndex)
			if math.IsNaN(report.Error) {
				fmt.Printf("note %3d  %-4s  no estimate\n", report.NoteIndex, note.PitchName())
				return
			}
			fmt.Printf("note %3d  %-4s  %+.3f st  %-7s (%d frames)\n",
				report.NoteIndex, note.PitchName(), report.Error, report.Color, report.Samples)
		}

		for start := 0; start < len(audio.PCM); start += cfg.HopLength {
			end := start + cfg.WindowLength
			if end > len(audio.PCM) {
				end = len(audio.PCM)
			}
			frame := audio.PCM[start:end]

			refTime, err := sf.Step(frame)
			if err != nil {
				return err
			}

			expected := table.ExpectedAt(refTime)
			if expected < 0 {
				continue
			}

			if expected != currentNote {
				if currentNote >= 0 {
					emit(aggregator.Finish())
				}
				onset, next := table.OnsetWindow(expected, sf.StepSeconds())
				aggregator.StartNote(expected, onset, next, refDuration-onset)
				currentNote = expected
			}

			semitoneErr := estimator.EstimateFrame(frame, table.At(expected).MIDIPitch)
			aggregator.Add(refTime, semitoneErr)
		}

		if currentNote >= 0 {
			emit(aggregator.Finish())
		}

		return nil
	},
}

// loadTable reads a note table from CSV or, by extension, from a standard
// MIDI file
func loadTable(filename string) (*notes.Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mid", ".midi":
		return notes.LoadSMF(filename)
	default:
		return notes.LoadCSV(filename)
	}
}
