package scf

import (
	"context"
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FragmentProblem is an embedded active-space problem shipped to the
// classical correlated solver (CCSD) on the integral-solver service.
type FragmentProblem struct {
	Constant    float64     `json:"constant"`
	OneBody     [][]float64 `json:"one_body"`
	TwoElectron []float64   `json:"two_electron"`
	Electrons   int         `json:"electrons"`
}

// FragmentSolution is the classical solver's answer.
type FragmentSolution struct {
	Energy  float64
	Density *mat.Dense
}

type fragmentSolutionPayload struct {
	Energy  float64     `json:"energy"`
	Density [][]float64 `json:"density"`
}

// SolveFragmentCCSD solves one embedded fragment with the collaborator's
// coupled-cluster code. Used for fragments configured with a classical
// solver instead of the variational one.
func (c *Client) SolveFragmentCCSD(ctx context.Context, problem FragmentProblem) (*FragmentSolution, error) {
	body, err := c.post(ctx, "/solve/ccsd", problem)
	if err != nil {
		return nil, err
	}

	var payload fragmentSolutionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse ccsd result: %w", err)
	}

	return &FragmentSolution{
		Energy:  payload.Energy,
		Density: denseFromRows(payload.Density),
	}, nil
}
