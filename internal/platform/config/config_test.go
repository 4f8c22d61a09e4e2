package config

import (
	"testing"
	"time"

	kit "newswire/internal/platform/testkit"
)

func TestPrefixComposition(t *testing.T) {
	t.Setenv("A_B_KEY", "v")
	c := New().Prefix("A_").Prefix("B_")
	if got := c.MayString("KEY", "def"); got != "v" {
		t.Fatalf("nested prefix lookup = %q, want v", got)
	}
}

func TestMustString(t *testing.T) {
	t.Setenv("API_TOKEN", "  secret  ")
	c := New().Prefix("API_")
	if got := c.MustString("TOKEN"); got != "secret" {
		t.Fatalf("MustString = %q, want secret", got)
	}
	kit.MustPanic(t, func() { c.MustString("MISSING") })
}

func TestRequire(t *testing.T) {
	t.Setenv("API_ONE", "1")
	t.Setenv("API_TWO", "2")
	c := New().Prefix("API_")
	kit.MustNotPanic(t, func() { c.Require("ONE", "TWO") })
	kit.MustPanic(t, func() { c.Require("ONE", "NOPE") })
}

func TestMayString(t *testing.T) {
	t.Setenv("API_NAME", " hn ")
	c := New().Prefix("API_")
	if got := c.MayString("NAME", "x"); got != "hn" {
		t.Fatalf("MayString hit = %q", got)
	}
	if got := c.MayString("MISSING", "fallback"); got != "fallback" {
		t.Fatalf("MayString miss = %q", got)
	}
}

func TestMayInt(t *testing.T) {
	t.Setenv("API_N", "30")
	t.Setenv("API_BAD", "thirty")
	c := New().Prefix("API_")

	cases := []struct {
		key  string
		def  int
		want int
	}{
		{"N", 0, 30},
		{"BAD", 7, 7},
		{"MISSING", 9, 9},
	}
	for _, tc := range cases {
		if got := c.MayInt(tc.key, tc.def); got != tc.want {
			t.Fatalf("MayInt(%q) = %d, want %d", tc.key, got, tc.want)
		}
	}
}

func TestMayBool(t *testing.T) {
	t.Setenv("API_YES", "true")
	t.Setenv("API_NO", "false")
	t.Setenv("API_BAD", "maybe")
	c := New().Prefix("API_")

	if !c.MayBool("YES", false) {
		t.Fatal("MayBool true env")
	}
	if c.MayBool("NO", true) {
		t.Fatal("MayBool false env")
	}
	if !c.MayBool("BAD", true) {
		t.Fatal("MayBool invalid falls back to default")
	}
	if c.MayBool("MISSING", false) {
		t.Fatal("MayBool missing falls back to default")
	}
}

func TestMayDuration(t *testing.T) {
	t.Setenv("API_TTL", "900s")
	t.Setenv("API_BAD", "soonish")
	c := New().Prefix("API_")

	if got := c.MayDuration("TTL", time.Second); got != 900*time.Second {
		t.Fatalf("MayDuration hit = %v", got)
	}
	if got := c.MayDuration("BAD", 5*time.Second); got != 5*time.Second {
		t.Fatalf("MayDuration invalid = %v", got)
	}
	if got := c.MayDuration("MISSING", time.Minute); got != time.Minute {
		t.Fatalf("MayDuration miss = %v", got)
	}
}
