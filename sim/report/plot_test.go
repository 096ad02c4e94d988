package report

import (
	"io"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droplet-sim/droplet-sim/sim"
)

func TestErrorHistoryPlot_Empty(t *testing.T) {
	_, err := ErrorHistoryPlot(nil, "empty")
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestErrorHistoryPlot_WritesPNG(t *testing.T) {
	// GIVEN a short error history
	var records []sim.ErrorRecord
	for i := 1; i <= 5; i++ {
		tm := float64(i) * 0.003
		records = append(records, sim.ErrorRecord{
			SolverTag: sim.SolverTag, FluidPair: "water-air", Resolution: 16, Time: tm,
			ErrorStats: sim.ErrorStats{Max: 0.1 * tm, Mean: 0.02 * tm, RMS: 0.04 * tm},
		})
	}

	// WHEN it is plotted and rendered
	p, err := ErrorHistoryPlot(records, "water-air, res 16")
	require.NoError(t, err)
	fs := memfs.New()
	require.NoError(t, WritePNG(fs, "history.png", p))

	// THEN the file is a PNG
	assert.Equal(t, "water-air, res 16", p.Title.Text)
	f, err := fs.Open("history.png")
	require.NoError(t, err)
	defer f.Close()
	head := make([]byte, 8)
	_, err = io.ReadFull(f, head)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), head)
}
