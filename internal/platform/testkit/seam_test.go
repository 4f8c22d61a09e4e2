package testkit

import (
	"testing"
	"time"
)

var (
	dialTimeout = 5 * time.Second
	retryCount  = 3
)

func TestSwapRestoresOnCleanup(t *testing.T) {
	// swap inside a subtest so Cleanup fires before the outer assertions
	t.Run("swapped", func(t *testing.T) {
		Swap(t, &dialTimeout, time.Millisecond)
		Swap(t, &retryCount, 1)
		if dialTimeout != time.Millisecond || retryCount != 1 {
			t.Fatalf("swap did not apply: %v %d", dialTimeout, retryCount)
		}
	})

	if dialTimeout != 5*time.Second {
		t.Fatalf("dialTimeout = %v, want original restored", dialTimeout)
	}
	if retryCount != 3 {
		t.Fatalf("retryCount = %d, want original restored", retryCount)
	}
}

func TestSerialExcludesParallelTests(t *testing.T) {
	t.Parallel()

	var inside bool

	t.Run("first", func(t *testing.T) {
		t.Parallel()
		Serial(t)
		if inside {
			t.Fatal("another serial test was running")
		}
		inside = true
		time.Sleep(20 * time.Millisecond)
		inside = false
	})

	t.Run("second", func(t *testing.T) {
		t.Parallel()
		Serial(t)
		if inside {
			t.Fatal("another serial test was running")
		}
		inside = true
		time.Sleep(20 * time.Millisecond)
		inside = false
	})
}
