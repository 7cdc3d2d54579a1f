package presence

import (
	"sort"
	"testing"

	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

type stubConn struct {
	name string
}

func (c *stubConn) Push(action string, data interface{}) error { return nil }

func newTestRegistry() *Registry {
	return NewRegistry(logger.New("error"))
}

func TestRegisterAndLookup(t *testing.T) {
	r := newTestRegistry()
	conn := &stubConn{name: "a"}

	if prev := r.Register("alice", conn); prev != nil {
		t.Fatalf("first Register returned previous handle %v", prev)
	}

	got, ok := r.Lookup("alice")
	if !ok || got != Conn(conn) {
		t.Fatal("Lookup did not return the registered handle")
	}
}

func TestLookupOfflineIsNotAnError(t *testing.T) {
	r := newTestRegistry()
	if _, ok := r.Lookup("ghost"); ok {
		t.Fatal("unknown user reported as online")
	}
}

func TestRegisterLastWriterWins(t *testing.T) {
	r := newTestRegistry()
	first := &stubConn{name: "first"}
	second := &stubConn{name: "second"}

	r.Register("alice", first)
	prev := r.Register("alice", second)

	if prev != Conn(first) {
		t.Fatal("Register did not return the displaced handle")
	}
	got, _ := r.Lookup("alice")
	if got != Conn(second) {
		t.Fatal("latest handle must win")
	}
	if users := r.ListOnline(); len(users) != 1 {
		t.Fatalf("re-register duplicated the user: %v", users)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	r.Register("alice", &stubConn{})

	r.Unregister("alice")
	if _, ok := r.Lookup("alice"); ok {
		t.Fatal("user still online after Unregister")
	}

	// Повторный вызов - no-op
	r.Unregister("alice")
	r.Unregister("never-registered")
}

func TestListOnline(t *testing.T) {
	r := newTestRegistry()
	r.Register("alice", &stubConn{})
	r.Register("bob", &stubConn{})
	r.Register("carol", &stubConn{})
	r.Unregister("bob")

	users := r.ListOnline()
	sort.Strings(users)
	want := []string{"alice", "carol"}
	if len(users) != len(want) {
		t.Fatalf("ListOnline = %v, want %v", users, want)
	}
	for i := range want {
		if users[i] != want[i] {
			t.Fatalf("ListOnline = %v, want %v", users, want)
		}
	}
}
