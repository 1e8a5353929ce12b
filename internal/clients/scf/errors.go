package scf

import "fmt"

// NonConvergenceError reports an SCF solve that did not converge. Fatal for
// that molecule configuration; the workflow never retries it.
type NonConvergenceError struct {
	Message string
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("scf did not converge: %s", e.Message)
}

// MalformedInputError reports molecular input the solver rejected.
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed molecular input: %s", e.Reason)
}
