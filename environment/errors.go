package environment

import "fmt"

// InitError reports that a Session could not be constructed from the
// given ROM. It is the only error New returns.
type InitError struct {
	Path string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("environment: initialize %s: %v", e.Path, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
