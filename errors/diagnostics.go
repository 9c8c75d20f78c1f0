package errors

import (
	"fmt"
	"strings"
)

// Diagnostics collects every configuration error encountered during a
// single reload pass, so the user sees the complete list at once instead
// of fixing errors one at a time.
type Diagnostics struct {
	errs []error
}

// Add records an error. Nil errors are ignored.
func (d *Diagnostics) Add(err error) {
	if err == nil {
		return
	}
	d.errs = append(d.errs, err)
}

// Addf records a formatted error wrapping the given sentinel.
func (d *Diagnostics) Addf(sentinel error, format string, args ...any) {
	d.errs = append(d.errs, fmt.Errorf(format+": %w", append(args, sentinel)...))
}

// HasErrors reports whether any error was recorded.
func (d *Diagnostics) HasErrors() bool {
	return len(d.errs) > 0
}

// Errors returns the recorded errors in insertion order.
func (d *Diagnostics) Errors() []error {
	return d.errs
}

// Err returns the diagnostics as a single error, or nil if empty.
func (d *Diagnostics) Err() error {
	if len(d.errs) == 0 {
		return nil
	}
	return d
}

// Error implements the error interface, listing every collected error.
func (d *Diagnostics) Error() string {
	if len(d.errs) == 1 {
		return d.errs[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d configuration errors:", len(d.errs))
	for _, err := range d.errs {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is / errors.As.
func (d *Diagnostics) Unwrap() []error {
	return d.errs
}
