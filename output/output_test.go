package output

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopnp/fem"
	"github.com/notargets/gopnp/mesh1D"
	"github.com/notargets/gopnp/newton"
	"github.com/notargets/gopnp/pnp"
)

func TestHistory(t *testing.T) {
	var (
		buf  bytes.Buffer
		recs = []pnp.LevelRecord{
			{Stage: pnp.Stage{Level: 0}, Cells: 10, NewtonIterations: 6, State: newton.Converged,
				RelativeResidual: 3.e-9, MaxResidual: 1.e-10, L2Error: 4.e-2, H1Error: 0.3,
				Energy: -2.5, RefinementLevels: 2, Marked: 14},
			{Stage: pnp.Stage{Level: 1}, Cells: 20, NewtonIterations: 15, State: newton.MaxIterationsReached,
				RelativeResidual: 2.e-7, MaxResidual: 1.e-9, L2Error: 1.e-2, H1Error: 0.15, Energy: -2.25},
		}
	)
	hw, err := NewHistoryWriter(&buf)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, hw.Write(rec))
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(HistoryHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "0,0,1,20,15,maximum iterations reached,"))

	back, err := ReadHistory(&buf)
	require.NoError(t, err)
	assert.Equal(t, recs, back)

	l2, h1 := ConvergenceOrders(back)
	require.Len(t, l2, 1)
	assert.InDelta(t, 2., l2[0], 1.e-12)
	assert.InDelta(t, 1., h1[0], 1.e-12)
	{
		_, err = ReadHistory(strings.NewReader(""))
		assert.Error(t, err)
		_, err = ReadHistory(strings.NewReader("a,b\n1,2\n"))
		assert.Error(t, err)
		bad := strings.Join(HistoryHeader, ",") + "\n0,0,0,10,1,lost,1,1,1,1,1,0,0\n"
		_, err = ReadHistory(strings.NewReader(bad))
		assert.Error(t, err)
		bad = strings.Join(HistoryHeader, ",") + "\n0,zero,0,10,1,converged,1,1,1,1,1,0,0\n"
		_, err = ReadHistory(strings.NewReader(bad))
		assert.Error(t, err)
	}
	{ // Time steps survive the round trip
		var tb bytes.Buffer
		hw, err := NewHistoryWriter(&tb)
		require.NoError(t, err)
		rec := pnp.LevelRecord{Stage: pnp.Stage{Step: 3, Time: 0.15, Level: 1}, Cells: 12,
			State: newton.Converged, L2Error: math.NaN(), H1Error: math.NaN(), Energy: 1.5}
		require.NoError(t, hw.Write(rec))
		back, err := ReadHistory(&tb)
		require.NoError(t, err)
		require.Len(t, back, 1)
		assert.Equal(t, rec.Stage, back[0].Stage)
		assert.Equal(t, 1.5, back[0].Energy)
		assert.True(t, math.IsNaN(back[0].L2Error))
	}
	{ // No exact solution
		nan := []pnp.LevelRecord{{Cells: 4, L2Error: math.NaN()}, {Cells: 8, L2Error: math.NaN()}}
		l2, _ = ConvergenceOrders(nan)
		assert.True(t, math.IsNaN(l2[0]))
	}
}

func TestSnapshots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snap")
	s, err := NewSnapshots(dir)
	require.NoError(t, err)
	m, _ := mesh1D.NewUniform(0, 1, 8)
	f := fem.Interpolate(m, math.Sin)
	files, err := s.Write(pnp.Stage{Level: 2}, 3, []Field{
		{Name: "potential", F: f, Exact: math.Sin},
		{Name: "cation", F: f},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "potential_L02_it03.png"),
		filepath.Join(dir, "cation_L02_it03.png"),
	}, files)
	for _, name := range files {
		fi, err := os.Stat(name)
		require.NoError(t, err)
		assert.Greater(t, fi.Size(), int64(0))
	}
	assert.Equal(t, filepath.Join(dir, "charge_L01.png"), s.FileName("charge", pnp.Stage{Level: 1}, -1))
	files, err = s.Write(pnp.Stage{Level: 1}, -1, []Field{{Name: "charge", F: f}})
	require.NoError(t, err)
	assert.Len(t, files, 1)
	{ // Time steps are part of the name
		stage := pnp.Stage{Step: 4, Time: 0.2, Level: 1}
		assert.Equal(t, filepath.Join(dir, "anion_S004_L01_it02.png"), s.FileName("anion", stage, 2))
		files, err = s.Write(stage, -1, []Field{{Name: "anion", F: f}})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "anion_S004_L01.png")}, files)
	}
}
