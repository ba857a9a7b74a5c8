package digest

import (
	"errors"
	"fmt"
)

// ErrEngineFault is matched by every *Fault.
var ErrEngineFault = errors.New("digest: engine fault")

// Fault is an internal failure of a transform. Transforms are total over all
// inputs, so a Fault always points at a bug.
type Fault struct {
	Algorithm string
	Variant   Variant
	Cause     any
}

func (f *Fault) Error() string {
	return fmt.Sprintf("digest: engine fault in %s (%s): %v", f.Algorithm, f.Variant, f.Cause)
}

func (f *Fault) Unwrap() []error {
	if err, ok := f.Cause.(error); ok {
		return []error{ErrEngineFault, err}
	}
	return []error{ErrEngineFault}
}
