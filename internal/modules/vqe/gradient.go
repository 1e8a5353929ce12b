package vqe

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// parameterShift fills grad with the parameter-shift rule
//
//	dE/dp_i = (E(x + pi/2 e_i) - E(x - pi/2 e_i)) / 2
//
// The two evaluations per parameter are independent and run concurrently.
func (s *Solver) parameterShift(ctx context.Context, grad, x []float64, energy func([]float64) (float64, error)) error {
	g, _ := errgroup.WithContext(ctx)

	for i := range x {
		i := i
		g.Go(func() error {
			plus := shifted(x, i, math.Pi/2)
			minus := shifted(x, i, -math.Pi/2)

			ePlus, err := energy(plus)
			if err != nil {
				return err
			}
			eMinus, err := energy(minus)
			if err != nil {
				return err
			}
			grad[i] = (ePlus - eMinus) / 2
			return nil
		})
	}

	return g.Wait()
}

func shifted(x []float64, i int, delta float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	out[i] += delta
	return out
}
