// Package testhelpers provides helpers for testing.
package testhelpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const timeout = 5 * time.Second

// RecvTimeout reads one value from ch within the given wait. ok is false
// on timeout, which the protocol treats as definitive absence.
func RecvTimeout[T any](ch <-chan T, wait time.Duration) (v T, ok bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case v = <-ch:
		return v, true
	case <-timer.C:
		return v, false
	}
}

// WithinTimeout tries to read an error from error channel within timeout and returns it.
// If timeout exceeds, nil value is returned.
func WithinTimeout(ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		return nil
	}
}

// NoErrorN performs require.NoError on multiple errors
func NoErrorN(t *testing.T, errs ...error) {
	for _, err := range errs {
		require.NoError(t, err)
	}
}
