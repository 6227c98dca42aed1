package playback

import (
	"iter"
	"slices"
	"testing"
	"time"

	"blogmusic/core/resolver"
)

// fixedResolver returns canned urls regardless of the link.
type fixedResolver struct {
	primary   string
	fallbacks []string
}

func (r fixedResolver) ResolvePrimary(string, resolver.Platform) string { return r.primary }

func (r fixedResolver) Fallbacks(string, resolver.Platform) iter.Seq[string] {
	return slices.Values(r.fallbacks)
}

func (r fixedResolver) Resolve(string, resolver.Platform) resolver.ResolvedSource {
	return resolver.ResolvedSource{PrimaryURL: r.primary, FallbackURLs: r.fallbacks}
}

func newTestRegistry(size int, ttl time.Duration) *Registry {
	return NewRegistry(size, ttl, func(id string) *Coordinator {
		return NewCoordinator(nil, &fakeMedia{accept: func(string) bool { return true }}, nil, WithName(id))
	})
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	r := newTestRegistry(10, time.Hour)

	id, c := r.Create()
	if id == "" || c == nil {
		t.Fatal("Create returned empty session")
	}
	got, ok := r.Get(id)
	if !ok || got != c {
		t.Fatal("Get did not return the created coordinator")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	if !r.Remove(id) {
		t.Fatal("Remove returned false")
	}
	if _, ok := r.Get(id); ok {
		t.Error("session still present after Remove")
	}
	if err := c.Request(directTrack); err != ErrSessionClosed {
		t.Errorf("removed coordinator Request = %v, want ErrSessionClosed", err)
	}
}

func TestRegistry_EvictsOldest(t *testing.T) {
	r := newTestRegistry(2, time.Hour)

	first, c1 := r.Create()
	_, _ = r.Create()
	_, _ = r.Create()

	if _, ok := r.Get(first); ok {
		t.Error("oldest session should be evicted")
	}
	if err := c1.Request(directTrack); err != ErrSessionClosed {
		t.Errorf("evicted coordinator Request = %v, want ErrSessionClosed", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistry_SessionsAreIndependent(t *testing.T) {
	r := newTestRegistry(10, time.Hour)
	_, a := r.Create()
	_, b := r.Create()

	_ = a.Request(directTrack)
	if b.Snapshot().State != StateEmpty {
		t.Error("request on one session leaked into another")
	}
	if a.Snapshot().State != StatePlaying {
		t.Errorf("state = %s, want playing", a.Snapshot().State)
	}
}
