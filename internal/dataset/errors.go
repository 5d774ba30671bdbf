package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDataLoad is matched by every loader failure.
var ErrDataLoad = errors.New("dataset load failed")

// LoadError describes why a source could not be turned into a dataset.
// Row is the 1-based data row (the header is not counted); zero means the
// failure is not tied to a row.
type LoadError struct {
	Source string
	Row    int
	Column string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "loading dataset %s", e.Source)
	if e.Row > 0 {
		fmt.Fprintf(&b, ": row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both ErrDataLoad and the underlying cause.
func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDataLoad}
	}
	return []error{ErrDataLoad, e.Err}
}
