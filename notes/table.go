package notes

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"gitlab.com/gomidi/midi/v2"

	"github.com/fermata-audio/scorefollow/align"
	"github.com/fermata-audio/scorefollow/logging"
)

// Note is one row of the reference note table: an expected note onset in
// performance order
type Note struct {
	Beat                 float64 `json:"beat"`
	MIDIPitch            float64 `json:"midi_pitch"` // fractional only for tuning offsets
	ReferenceTimeSeconds float64 `json:"reference_time_seconds"`
	// LiveTimeSeconds is a test-only annotation; NaN when the source table
	// does not carry it
	LiveTimeSeconds      float64 `json:"live_time_seconds,omitempty"`
	PredictedTimeSeconds float64 `json:"predicted_time_seconds"`
}

// PitchName renders the expected pitch as a MIDI note name, e.g. "A4"
func (n Note) PitchName() string {
	key := int(math.Round(n.MIDIPitch))
	if key < 0 || key > 127 {
		return "?"
	}
	return midi.Note(uint8(key)).String()
}

// Table is an ordered reference note table. Consumed, not owned, by the
// intonation pipeline; reference times must be non-decreasing.
type Table struct {
	notes  []Note
	logger logging.Logger
}

// NewTable builds a table from rows, validating onset ordering
func NewTable(rows []Note) (*Table, error) {
	for i := 1; i < len(rows); i++ {
		if rows[i].ReferenceTimeSeconds < rows[i-1].ReferenceTimeSeconds {
			return nil, fmt.Errorf("reference times must be non-decreasing: row %d (%.3fs) before row %d (%.3fs)",
				i, rows[i].ReferenceTimeSeconds, i-1, rows[i-1].ReferenceTimeSeconds)
		}
	}
	return &Table{
		notes: rows,
		logger: logging.WithFields(logging.Fields{
			"component": "note_table",
			"notes":     len(rows),
		}),
	}, nil
}

// LoadCSV reads a note table with columns
// beat, midi_pitch, reference_time_seconds[, live_time_seconds].
// A non-numeric first row is treated as a header and skipped.
func LoadCSV(filename string) (*Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open note table: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse note table: %w", err)
	}

	rows := make([]Note, 0, len(records))
	for i, rec := range records {
		if len(rec) < 3 {
			return nil, fmt.Errorf("note table row %d: want at least 3 columns, got %d", i, len(rec))
		}

		beat, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("note table row %d: bad beat %q", i, rec[0])
		}

		pitch, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("note table row %d: bad pitch %q", i, rec[1])
		}

		refTime, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("note table row %d: bad reference time %q", i, rec[2])
		}

		liveTime := math.NaN()
		if len(rec) > 3 && rec[3] != "" {
			liveTime, err = strconv.ParseFloat(rec[3], 64)
			if err != nil {
				return nil, fmt.Errorf("note table row %d: bad live time %q", i, rec[3])
			}
		}

		rows = append(rows, Note{
			Beat:                 beat,
			MIDIPitch:            pitch,
			ReferenceTimeSeconds: refTime,
			LiveTimeSeconds:      liveTime,
			PredictedTimeSeconds: math.NaN(),
		})
	}

	return NewTable(rows)
}

// Len returns the number of notes
func (t *Table) Len() int {
	return len(t.notes)
}

// At returns the note at index i
func (t *Table) At(i int) Note {
	return t.notes[i]
}

// Notes returns a copy of all rows
func (t *Table) Notes() []Note {
	out := make([]Note, len(t.notes))
	copy(out, t.notes)
	return out
}

// ExpectedAt returns the index of the note expected at the given reference
// time: the last onset at or before it. Returns -1 before the first onset.
func (t *Table) ExpectedAt(refTimeSeconds float64) int {
	idx := -1
	for i, n := range t.notes {
		if n.ReferenceTimeSeconds <= refTimeSeconds {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// OnsetWindow returns a note's onset and the onset of the next note; the
// final note's window extends by trailing, matching the beat dispatcher's
// convention for the last cursor segment
func (t *Table) OnsetWindow(i int, trailing float64) (onset, next float64) {
	onset = t.notes[i].ReferenceTimeSeconds
	if i+1 < len(t.notes) {
		next = t.notes[i+1].ReferenceTimeSeconds
	} else {
		next = onset + trailing
	}
	return onset, next
}

// PredictTimes fills PredictedTimeSeconds for every row by warping each
// reference onset through an alignment path. stepSize is seconds per path
// index.
func (t *Table) PredictTimes(path []align.PathPoint, stepSize float64) {
	refTimes := make([]float64, len(t.notes))
	for i, n := range t.notes {
		refTimes[i] = n.ReferenceTimeSeconds
	}

	predicted := align.CalculateWarpedTimes(path, stepSize, refTimes)
	for i := range t.notes {
		t.notes[i].PredictedTimeSeconds = predicted[i]
	}

	t.logger.Debug("predicted note times updated", logging.Fields{
		"path_len": len(path),
	})
}
