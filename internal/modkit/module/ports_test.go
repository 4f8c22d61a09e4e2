package module

import (
	"testing"

	phttp "newswire/internal/platform/net/http"
)

type refresher interface{ Kind() string }

type fakePort struct{ kind string }

func (f fakePort) Kind() string { return f.kind }

type fakeModule struct{ ports any }

func (m fakeModule) MountRoutes(phttp.Router) {}
func (m fakeModule) Ports() any               { return m.ports }
func (m fakeModule) Name() string             { return "fake" }

func TestPortsOf_DirectImplementation(t *testing.T) {
	t.Parallel()

	m := fakeModule{ports: fakePort{kind: "direct"}}
	p, ok := PortsOf[refresher](m)
	if !ok || p.Kind() != "direct" {
		t.Fatalf("PortsOf = (%v,%v)", p, ok)
	}
}

func TestPortsOf_StructFieldWalk(t *testing.T) {
	t.Parallel()

	type bundle struct {
		R refresher
	}
	m := fakeModule{ports: bundle{R: fakePort{kind: "field"}}}
	p, ok := PortsOf[refresher](m)
	if !ok || p.Kind() != "field" {
		t.Fatalf("PortsOf = (%v,%v)", p, ok)
	}
}

func TestPortsOf_MissingPort(t *testing.T) {
	t.Parallel()

	if _, ok := PortsOf[refresher](fakeModule{}); ok {
		t.Fatalf("expected no port on nil bundle")
	}
}

func TestMustPortsOf_PanicsWhenAbsent(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for missing port")
		}
	}()
	MustPortsOf[refresher](fakeModule{})
}
