package module

import (
	"testing"

	phttp "newsroom/internal/platform/net/http"
	kit "newsroom/internal/platform/testkit"
)

type Dispatcher interface{ Dispatch() int }
type Classifier interface{ Classify() string }

type dispatcher struct{}

func (dispatcher) Dispatch() int { return 3 }

type ports struct {
	D Dispatcher
	x Classifier
}

type fakeModule struct {
	name    string
	ports   any
	mounted *[]string
}

func (f fakeModule) Name() string { return f.name }
func (f fakeModule) Ports() any   { return f.ports }
func (f fakeModule) MountRoutes(phttp.Router) {
	if f.mounted != nil {
		*f.mounted = append(*f.mounted, f.name)
	}
}

func TestPortsOf(t *testing.T) {
	m := fakeModule{name: "processing", ports: &ports{D: dispatcher{}}}
	d, ok := PortsOf[Dispatcher](m)
	if !ok || d.Dispatch() != 3 {
		t.Fatalf("PortsOf Dispatcher failed")
	}
	if _, ok := PortsOf[Classifier](m); ok {
		t.Fatalf("unexported field must not be found")
	}
	direct := fakeModule{name: "d", ports: dispatcher{}}
	if _, ok := PortsOf[Dispatcher](direct); !ok {
		t.Fatalf("direct implementation not found")
	}
	if _, ok := PortsOf[Dispatcher](fakeModule{name: "nil"}); ok {
		t.Fatalf("nil ports should miss")
	}
	kit.MustPanic(t, func() { MustPortsOf[Classifier](m) })
}

func TestSet(t *testing.T) {
	var mounted []string
	s := Set{fakeModule{name: "a", mounted: &mounted}, fakeModule{name: "b", mounted: &mounted}}
	s.Mount(phttp.AdaptChi(nil))
	if len(mounted) != 2 || mounted[0] != "a" || mounted[1] != "b" {
		t.Fatalf("mount order = %v", mounted)
	}
	if n := s.Names(); len(n) != 2 || n[1] != "b" {
		t.Fatalf("Names = %v", n)
	}
}
