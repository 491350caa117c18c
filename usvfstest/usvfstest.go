// Package usvfstest holds small hand-written assertion helpers shared
// across this module's test files, in place of a testify-style
// assertion library.
//
// Grounded on avfs's test/test_suite.go (AssertNoError,
// AssertInvalid, RequireNoError, formatArgs): same shape (testing.TB +
// optional printf-style message), generalized from avfs's io/fs
// sentinel errors to this module's own reroute result type. avfs's AssertPanic has no analogue here: this
// module has no "call a method on a closed handle" scenario the way
// avfs's File does, so there is nothing for it to usefully assert
// against.
package usvfstest

import (
	"fmt"
	"testing"

	"github.com/usvfs-go/usvfs/reroute"
)

// AssertNoError asserts that err is nil.
func AssertNoError(tb testing.TB, err error, msgAndArgs ...any) bool {
	tb.Helper()

	if err != nil {
		tb.Errorf("error: want nil, got %v\n%s", err, formatArgs(msgAndArgs))

		return false
	}

	return true
}

// RequireNoError is AssertNoError but stops the test immediately on
// failure.
func RequireNoError(tb testing.TB, err error, msgAndArgs ...any) {
	tb.Helper()

	if !AssertNoError(tb, err, msgAndArgs...) {
		tb.FailNow()
	}
}

// AssertRerouted asserts that r.Rerouted is true and r.Result equals
// want.
func AssertRerouted(tb testing.TB, r reroute.Reroute, want string) bool {
	tb.Helper()

	if !r.Rerouted {
		tb.Errorf("reroute: want a hit, got none (Result=%q)", r.Result)

		return false
	}

	if r.Result != want {
		tb.Errorf("reroute: Result = %q, want %q", r.Result, want)

		return false
	}

	return true
}

// AssertNotRerouted asserts that r.Rerouted is false.
func AssertNotRerouted(tb testing.TB, r reroute.Reroute) bool {
	tb.Helper()

	if r.Rerouted {
		tb.Errorf("reroute: want no hit, got Result=%q", r.Result)

		return false
	}

	return true
}

func formatArgs(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}

	format, ok := msgAndArgs[0].(string)
	if !ok {
		return ""
	}

	if len(msgAndArgs) == 1 {
		return format
	}

	return fmt.Sprintf(format, msgAndArgs[1:]...)
}
