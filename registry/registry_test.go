package registry

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"engineio/session"
)

func newTestSession(id string) *session.Session {
	return session.New(id, false, false, nil, zerolog.Nop())
}

func TestInsertAndGet(t *testing.T) {
	r := New()
	s := newTestSession("abc")

	if err := r.Insert(s); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok := r.Get("abc")
	if !ok || got != s {
		t.Errorf("Get(abc) = %v, %v; want %v, true", got, ok, s)
	}
}

func TestInsertCollision(t *testing.T) {
	r := New()
	if err := r.Insert(newTestSession("dup")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := r.Insert(newTestSession("dup"))
	if !errors.Is(err, ErrSIDCollision) {
		t.Errorf("got %v, want ErrSIDCollision", err)
	}
}

func TestCloseRemovesFromRegistry(t *testing.T) {
	r := New()
	s := newTestSession("gone")
	if err := r.Insert(s); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	s.Close("done")

	if _, ok := r.Get("gone"); ok {
		t.Errorf("session still present after Close")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	r.Insert(newTestSession("one"))
	r.Insert(newTestSession("two"))

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(snapshot) = %d, want 2", len(snap))
	}

	r.Remove("one")
	if len(snap) != 2 {
		t.Errorf("mutating the registry mutated a prior snapshot")
	}
}
