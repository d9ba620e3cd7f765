package align_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fermata-audio/scorefollow/align"
)

func TestDTWAlignIdenticalSequences(t *testing.T) {
	frames := make([][]float64, 6)
	for i := range frames {
		frames[i] = unit(i)
	}
	seq := newSeq(t, frames...)

	result, err := align.NewDTW().Align(seq, seq)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, result.Distance, 1e-12)
	assert.InDelta(t, 0.0, result.Normalized, 1e-12)
	assert.Equal(t, 6, result.QueryLength)
	assert.Equal(t, 6, result.RefLength)

	require.Len(t, result.Path, 6)
	for i, p := range result.Path {
		assert.Equal(t, align.PathPoint{RefIndex: i, LiveIndex: i}, p)
	}
}

func TestDTWAlignStretchedQuery(t *testing.T) {
	refFrames := make([][]float64, 4)
	for i := range refFrames {
		refFrames[i] = unit(i)
	}
	ref := newSeq(t, refFrames...)

	// performer holds every note twice as long
	var queryFrames [][]float64
	for i := range refFrames {
		queryFrames = append(queryFrames, unit(i), unit(i))
	}
	query := newSeq(t, queryFrames...)

	result, err := align.NewDTW().Align(query, ref)
	require.NoError(t, err)

	assert.Equal(t, align.PathPoint{RefIndex: 0, LiveIndex: 0}, result.Path[0])
	assert.Equal(t, align.PathPoint{RefIndex: 3, LiveIndex: 7}, result.Path[len(result.Path)-1])

	// the path is monotonic and covers every query frame
	covered := make(map[int]bool)
	for i, p := range result.Path {
		covered[p.LiveIndex] = true
		if i > 0 {
			assert.GreaterOrEqual(t, p.RefIndex, result.Path[i-1].RefIndex)
			assert.GreaterOrEqual(t, p.LiveIndex, result.Path[i-1].LiveIndex)
		}
	}
	assert.Len(t, covered, 8)
}

func TestDTWAlignEmpty(t *testing.T) {
	seq := newSeq(t, unit(0))

	_, err := align.NewDTW().Align(nil, seq)
	assert.Error(t, err)
	_, err = align.NewDTW().Align(seq, nil)
	assert.Error(t, err)
}

func TestDTWAlignBandTooNarrow(t *testing.T) {
	refFrames := make([][]float64, 10)
	for i := range refFrames {
		refFrames[i] = unit(i)
	}
	ref := newSeq(t, refFrames...)
	query := newSeq(t, unit(0), unit(1))

	// |refLen-1 - queryLen-1| = 8 exceeds the band, so the end cell is
	// unreachable
	_, err := align.NewDTWWithParams(2, 0.75).Align(query, ref)
	assert.Error(t, err)

	result, err := align.NewDTWWithParams(8, 0.75).Align(query, ref)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Constraint)
}
