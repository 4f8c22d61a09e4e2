// Package testkit holds small assertion helpers shared by platform tests
package testkit

import (
	"strings"
	"testing"
)

// MustPanic asserts that fn panics
func MustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic, got none")
		}
	}()
	fn()
}

// MustNotPanic asserts that fn completes without panicking
func MustNotPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	fn()
}

// MustContain asserts that haystack contains needle and shows a bounded
// excerpt of the haystack on failure
func MustContain(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		return
	}
	const keep = 2048
	excerpt := haystack
	if len(excerpt) > keep {
		excerpt = excerpt[:keep] + "... (truncated)"
	}
	t.Fatalf("expected output to contain %q\n\noutput:\n%s", needle, excerpt)
}
