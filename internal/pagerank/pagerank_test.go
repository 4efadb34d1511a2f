package pagerank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

func TestCycleIsUniform(t *testing.T) {
	adj := [][]int{{1}, {2}, {0}}
	for _, d := range []float64{0.5, 0.85, 0.95} {
		res, err := Solve(adj, Options{Damping: d, MaxIterations: 50, Epsilon: 1e-9})
		require.NoError(t, err)
		for _, s := range res.Scores {
			assert.InDelta(t, 1.0, s, 1e-9, "damping %v", d)
		}
		assert.InDelta(t, 3.0, sum(res.Scores), 1e-9)
		assert.True(t, res.Converged)
	}
}

func TestDanglingNode(t *testing.T) {
	// 0 -> 1, 2; 1 -> 2; 2 has no outlinks.
	res, err := Solve([][]int{{1, 2}, {2}, nil}, DefaultOptions())
	require.NoError(t, err)

	for _, s := range res.Scores {
		assert.False(t, math.IsNaN(s))
		assert.Greater(t, s, 0.0)
	}
	assert.InDelta(t, 3.0, sum(res.Scores), 1e-9)
	assert.Greater(t, res.Scores[2], res.Scores[1])
	assert.Greater(t, res.Scores[1], res.Scores[0])
}

func TestAllDangling(t *testing.T) {
	res, err := Solve([][]int{nil, nil, nil, nil}, DefaultOptions())
	require.NoError(t, err)
	for _, s := range res.Scores {
		assert.InDelta(t, 1.0, s, 1e-12)
	}
	assert.Equal(t, 1, res.Iterations)
}

func TestEmptyAndSingle(t *testing.T) {
	res, err := Solve(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Scores)

	res, err = Solve([][]int{nil}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, res.Scores)
}

func TestIterationCap(t *testing.T) {
	adj := [][]int{{1, 2, 3}, {0}, {0}, {0, 1}}
	res, err := Solve(adj, Options{Damping: 0.85, MaxIterations: 2, Epsilon: 1e-12})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
	assert.False(t, res.Converged)
	assert.InDelta(t, 4.0, sum(res.Scores), 1e-9)
}

func TestInvalidInput(t *testing.T) {
	for _, d := range []float64{0, 1, -0.2, 1.5} {
		_, err := Solve([][]int{{0}}, Options{Damping: d})
		assert.ErrorIs(t, err, ErrInvalidDamping)
	}
	_, err := Solve([][]int{{3}}, DefaultOptions())
	assert.Error(t, err)
}

func TestUniform(t *testing.T) {
	assert.Equal(t, 0.25, Uniform(4))
	assert.Zero(t, Uniform(0))
}
