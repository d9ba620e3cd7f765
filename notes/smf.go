package notes

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// LoadSMF builds a note table from a standard MIDI file. Note-on events from
// all tracks become rows ordered by onset time; note-off events are ignored
// since only onsets drive the cursor. Beats are absolute ticks divided by the
// file's ticks-per-quarter resolution.
func LoadSMF(filename string) (t *Table, err error) {
	// the smf parser panics on some malformed inputs
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("parse midi file: %v", r)
		}
	}()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("open midi file: %w", err)
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse midi file: %w", err)
	}

	ticksPerQuarter := 960.0
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		ticksPerQuarter = float64(mt.Resolution())
	}

	var rows []Note
	for _, track := range s.Tracks {
		var absTicks int64
		for _, ev := range track {
			absTicks += int64(ev.Delta)

			var channel, key, velocity uint8
			if !ev.Message.GetNoteOn(&channel, &key, &velocity) || velocity == 0 {
				continue
			}

			rows = append(rows, Note{
				Beat:                 float64(absTicks) / ticksPerQuarter,
				MIDIPitch:            float64(key),
				ReferenceTimeSeconds: float64(s.TimeAt(absTicks)) / 1e6,
				LiveTimeSeconds:      math.NaN(),
				PredictedTimeSeconds: math.NaN(),
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ReferenceTimeSeconds < rows[j].ReferenceTimeSeconds
	})

	return NewTable(rows)
}
