package helper

import "fmt"

// NewError wraps err with the step it occurred in.
// The returned error keeps err in its chain, so errors.Is and errors.As still work.
func NewError(step string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", step, err)
}
