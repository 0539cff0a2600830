package bulk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_InOrder(t *testing.T) {
	var seen []string
	op := &Operation{}
	res := op.Execute(context.Background(), []string{"a", "b", "c"}, func(item string) error {
		seen = append(seen, item)
		return nil
	})

	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, 3, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.NoError(t, res.Err())
}

func TestExecute_StopOnError(t *testing.T) {
	boom := errors.New("boom")
	var seen []string
	op := &Operation{}
	res := op.Execute(context.Background(), []string{"a", "b", "c"}, func(item string) error {
		seen = append(seen, item)
		if item == "b" {
			return boom
		}
		return nil
	})

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	err := res.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b:")
}

func TestExecute_ContinueOnError(t *testing.T) {
	var log bytes.Buffer
	op := &Operation{ContinueOnError: true, Log: &log}
	res := op.Execute(context.Background(), []string{"a", "b", "c", "d"}, func(item string) error {
		if item == "a" || item == "c" {
			return fmt.Errorf("bad %s", item)
		}
		return nil
	})

	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Skipped)
	assert.EqualError(t, res.Err(), "2 of 4 records failed")
	assert.Equal(t, "a: error: bad a\nc: error: bad c\n", log.String())
}

func TestExecute_SingleItemErrorUnchanged(t *testing.T) {
	boom := errors.New("boom")
	res := (&Operation{}).Execute(context.Background(), []string{"a"}, func(string) error { return boom })
	assert.Same(t, boom, res.Err())
}

func TestExecute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	res := (&Operation{ContinueOnError: true}).Execute(ctx, []string{"a", "b", "c"}, func(string) error {
		calls++
		cancel()
		return nil
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, res.Skipped)
}

func TestExecute_Empty(t *testing.T) {
	res := (&Operation{}).Execute(context.Background(), nil, func(string) error {
		t.Fatal("should not be called")
		return nil
	})
	assert.Zero(t, res.TotalItems)
	assert.NoError(t, res.Err())
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want []string
	}{
		{"all ok", Result{TotalItems: 2, Succeeded: 2}, []string{"All 2 operations succeeded"}},
		{"all failed", Result{TotalItems: 1, Failed: 1, Errors: []ItemError{{"x", errors.New("nope")}}},
			[]string{"All 1 operations failed", "x: nope"}},
		{"partial", Result{TotalItems: 3, Succeeded: 1, Failed: 1, Skipped: 1, Errors: []ItemError{{"y", errors.New("nope")}}},
			[]string{"1 succeeded, 1 failed, 1 skipped", "y: nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.res.PrintSummary(&buf)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}

	var many Result
	for i := range 12 {
		many.Errors = append(many.Errors, ItemError{fmt.Sprint(i), errors.New("e")})
	}
	many.TotalItems, many.Failed = 12, 12
	var buf bytes.Buffer
	many.PrintSummary(&buf)
	assert.Contains(t, buf.String(), "first 10 errors (of 12)")
	assert.NotContains(t, buf.String(), "  11: e")
}
