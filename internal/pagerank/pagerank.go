// Package pagerank computes PageRank by power iteration over a dense
// adjacency list.
package pagerank

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidDamping = errors.New("damping must be in (0, 1)")

// Options control the iteration.
type Options struct {
	Damping       float64
	MaxIterations int
	Epsilon       float64
}

func DefaultOptions() Options {
	return Options{Damping: 0.85, MaxIterations: 20, Epsilon: 1e-6}
}

// Result holds one score per node. Scores sum to the node count.
type Result struct {
	Scores     []float64
	Iterations int
	Converged  bool
}

// Solve runs power iteration over adj, where adj[i] lists the nodes i
// links to. Rank held by nodes without outlinks is spread uniformly over
// all nodes on every iteration, so no mass leaks and no score is NaN.
func Solve(adj [][]int, opts Options) (Result, error) {
	if opts.Damping <= 0 || opts.Damping >= 1 {
		return Result{}, fmt.Errorf("%w: got %v", ErrInvalidDamping, opts.Damping)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultOptions().Epsilon
	}

	n := len(adj)
	if n == 0 {
		return Result{Converged: true}, nil
	}
	for i, targets := range adj {
		for _, j := range targets {
			if j < 0 || j >= n {
				return Result{}, fmt.Errorf("node %d links to out of range node %d", i, j)
			}
		}
	}

	N := float64(n)
	d := opts.Damping
	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / N
	}

	res := Result{}
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		dangling := 0.0
		for i, targets := range adj {
			if len(targets) == 0 {
				dangling += rank[i]
			}
		}
		base := (1-d)/N + d*dangling/N
		for i := range next {
			next[i] = base
		}
		for i, targets := range adj {
			if len(targets) == 0 {
				continue
			}
			share := d * rank[i] / float64(len(targets))
			for _, j := range targets {
				next[j] += share
			}
		}

		delta := 0.0
		for i := range rank {
			delta = math.Max(delta, math.Abs(next[i]-rank[i]))
		}
		rank, next = next, rank
		res.Iterations = iter
		if delta < opts.Epsilon {
			res.Converged = true
			break
		}
	}

	sum := 0.0
	for _, r := range rank {
		sum += r
	}
	for i := range rank {
		rank[i] = rank[i] * N / sum
	}
	res.Scores = rank
	return res, nil
}

// Uniform returns the score every node gets when ranking is disabled.
func Uniform(n int) float64 {
	if n == 0 {
		return 0
	}
	return 1 / float64(n)
}
