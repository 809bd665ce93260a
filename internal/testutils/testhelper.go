package testutils

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// Receive waits for a value on ch, failing the test after timeout.
func Receive[T any](t testing.TB, ch <-chan T, timeout time.Duration, msgAndArgs ...interface{}) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel MUST NOT be closed")
		return v
	case <-time.After(timeout):
		require.FailNow(t, "timed out waiting for value", msgAndArgs...)
	}
	var zero T
	return zero
}

// Drain returns every value already buffered in ch without blocking.
func Drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}
