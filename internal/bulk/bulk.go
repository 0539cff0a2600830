// Package bulk runs one command step over many record references and
// collects per-record failures.
package bulk

import (
	"context"
	"fmt"
	"io"
)

// Operation configures a bulk run. Steps run one at a time in argument
// order because every step is its own SQLite write transaction.
type Operation struct {
	ContinueOnError bool
	// Log, when set, receives one line per failed record as it happens.
	Log io.Writer
}

// Result represents the result of a bulk operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Skipped    int
	Errors     []ItemError
}

// ItemError represents an error for a specific item
type ItemError struct {
	Item  string
	Error error
}

// ItemFunc is the function to execute for each item
type ItemFunc func(item string) error

// Execute applies fn to each item. Without ContinueOnError it stops at the
// first failure and counts the remaining items as skipped. A cancelled
// context skips whatever has not started.
func (op *Operation) Execute(ctx context.Context, items []string, fn ItemFunc) *Result {
	result := &Result{TotalItems: len(items)}

	for i, item := range items {
		if ctx != nil && ctx.Err() != nil {
			result.Skipped = len(items) - i
			return result
		}
		if err := fn(item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Item: item, Error: err})
			if op.Log != nil {
				fmt.Fprintf(op.Log, "%s: error: %v\n", item, err)
			}
			if !op.ContinueOnError {
				result.Skipped = len(items) - i - 1
				return result
			}
			continue
		}
		result.Succeeded++
	}
	return result
}

// Err summarizes the failures as one error, or nil when every item
// succeeded. A single failure is returned unchanged.
func (r *Result) Err() error {
	switch len(r.Errors) {
	case 0:
		return nil
	case 1:
		if r.TotalItems == 1 {
			return r.Errors[0].Error
		}
		return fmt.Errorf("%s: %w", r.Errors[0].Item, r.Errors[0].Error)
	default:
		return fmt.Errorf("%d of %d records failed", r.Failed, r.TotalItems)
	}
}

// PrintSummary prints a human-readable summary of the result
func (r *Result) PrintSummary(w io.Writer) {
	switch {
	case r.Failed == 0:
		fmt.Fprintf(w, "All %d operations succeeded\n", r.TotalItems)
	case r.Succeeded == 0 && r.Skipped == 0:
		fmt.Fprintf(w, "All %d operations failed\n", r.TotalItems)
	default:
		fmt.Fprintf(w, "Partial success: %d succeeded, %d failed, %d skipped (out of %d)\n",
			r.Succeeded, r.Failed, r.Skipped, r.TotalItems)
	}

	shown := r.Errors
	if len(shown) > 10 {
		fmt.Fprintf(w, "Showing first 10 errors (of %d):\n", len(shown))
		shown = shown[:10]
	} else if len(shown) > 0 {
		fmt.Fprintf(w, "Errors:\n")
	}
	for _, e := range shown {
		fmt.Fprintf(w, "  %s: %v\n", e.Item, e.Error)
	}
}
