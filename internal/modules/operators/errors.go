package operators

import "fmt"

// EncodingError reports an active space that cannot be encoded with the
// requested fermion-to-qubit mapping.
type EncodingError struct {
	Encoding string
	Reason   string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s: %s", e.Encoding, e.Reason)
}

func encodingErrorf(encoding, format string, args ...interface{}) *EncodingError {
	return &EncodingError{Encoding: encoding, Reason: fmt.Sprintf(format, args...)}
}
