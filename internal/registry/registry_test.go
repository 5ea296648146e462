package registry

import (
	"sync"
	"testing"
)

// fixture is a minimal registry element with copy isolation.
type fixture struct {
	ID   string
	Tags []string
}

func (f *fixture) Key() string { return f.ID }

func (f *fixture) DeepCopy() *fixture {
	if f == nil {
		return nil
	}
	cpy := *f
	if f.Tags != nil {
		cpy.Tags = make([]string, len(f.Tags))
		copy(cpy.Tags, f.Tags)
	}
	return &cpy
}

// testProvider is a hand-driven provider for exercising the registry.
type testProvider struct {
	mu        sync.Mutex
	elements  []*fixture
	listeners []ProviderListener[*fixture]
}

func (p *testProvider) All() []*fixture {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*fixture, len(p.elements))
	copy(out, p.elements)
	return out
}

func (p *testProvider) AddProviderListener(l ProviderListener[*fixture]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

func (p *testProvider) RemoveProviderListener(l ProviderListener[*fixture]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.listeners {
		if existing == l {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return
		}
	}
}

func (p *testProvider) add(f *fixture) {
	p.mu.Lock()
	p.elements = append(p.elements, f)
	listeners := append([]ProviderListener[*fixture](nil), p.listeners...)
	p.mu.Unlock()
	for _, l := range listeners {
		l.ElementAdded(p, f)
	}
}

func (p *testProvider) update(old, updated *fixture) {
	p.mu.Lock()
	for i, e := range p.elements {
		if e.ID == old.ID {
			p.elements[i] = updated
			break
		}
	}
	listeners := append([]ProviderListener[*fixture](nil), p.listeners...)
	p.mu.Unlock()
	for _, l := range listeners {
		l.ElementUpdated(p, old, updated)
	}
}

func (p *testProvider) remove(f *fixture) {
	p.mu.Lock()
	for i, e := range p.elements {
		if e.ID == f.ID {
			p.elements = append(p.elements[:i], p.elements[i+1:]...)
			break
		}
	}
	listeners := append([]ProviderListener[*fixture](nil), p.listeners...)
	p.mu.Unlock()
	for _, l := range listeners {
		l.ElementRemoved(p, f)
	}
}

// changeRecorder records registry change notifications.
type changeRecorder struct {
	mu      sync.Mutex
	added   []*fixture
	updated [][2]*fixture
	removed []*fixture
}

func (c *changeRecorder) Added(e *fixture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.added = append(c.added, e)
}

func (c *changeRecorder) Updated(old, updated *fixture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated = append(c.updated, [2]*fixture{old, updated})
}

func (c *changeRecorder) Removed(e *fixture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, e)
}

func TestRegistry_AddProviderRegistersExistingElements(t *testing.T) {
	reg := New[*fixture, string](nil)
	rec := &changeRecorder{}
	reg.AddChangeListener(rec)

	p := &testProvider{elements: []*fixture{{ID: "a"}, {ID: "b"}}}
	reg.AddProvider(p)

	if reg.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", reg.Count())
	}
	if len(rec.added) != 2 {
		t.Errorf("Added notifications = %d, want 2", len(rec.added))
	}
	if _, ok := reg.Get("a"); !ok {
		t.Errorf("Get(a) not found after provider attach")
	}
}

func TestRegistry_ProviderDeltasFlow(t *testing.T) {
	reg := New[*fixture, string](nil)
	rec := &changeRecorder{}
	reg.AddChangeListener(rec)

	p := &testProvider{}
	reg.AddProvider(p)

	p.add(&fixture{ID: "a"})
	if _, ok := reg.Get("a"); !ok {
		t.Fatal("element added via provider delta not registered")
	}

	p.update(&fixture{ID: "a"}, &fixture{ID: "a", Tags: []string{"x"}})
	got, _ := reg.Get("a")
	if len(got.Tags) != 1 {
		t.Errorf("updated element Tags = %v, want [x]", got.Tags)
	}
	if len(rec.updated) != 1 {
		t.Errorf("Updated notifications = %d, want 1", len(rec.updated))
	}

	p.remove(&fixture{ID: "a"})
	if _, ok := reg.Get("a"); ok {
		t.Error("element still registered after provider removal delta")
	}
	if len(rec.removed) != 1 {
		t.Errorf("Removed notifications = %d, want 1", len(rec.removed))
	}
}

func TestRegistry_DuplicateUIDFirstProviderWins(t *testing.T) {
	reg := New[*fixture, string](nil)

	p1 := &testProvider{elements: []*fixture{{ID: "a", Tags: []string{"first"}}}}
	p2 := &testProvider{elements: []*fixture{{ID: "a", Tags: []string{"second"}}}}
	reg.AddProvider(p1)
	reg.AddProvider(p2)

	if reg.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", reg.Count())
	}
	got, _ := reg.Get("a")
	if len(got.Tags) != 1 || got.Tags[0] != "first" {
		t.Errorf("element = %v, want the first provider's", got.Tags)
	}

	// Removing the second provider must not take the element with it.
	reg.RemoveProvider(p2)
	if _, ok := reg.Get("a"); !ok {
		t.Error("element vanished when a non-owning provider was removed")
	}
}

func TestRegistry_RemoveProviderRemovesOnlyItsElements(t *testing.T) {
	reg := New[*fixture, string](nil)
	p1 := &testProvider{elements: []*fixture{{ID: "a"}}}
	p2 := &testProvider{elements: []*fixture{{ID: "b"}}}
	reg.AddProvider(p1)
	reg.AddProvider(p2)

	reg.RemoveProvider(p1)
	if _, ok := reg.Get("a"); ok {
		t.Error("Get(a) still present after owning provider removed")
	}
	if _, ok := reg.Get("b"); !ok {
		t.Error("Get(b) missing, other provider's element was removed")
	}
}

func TestRegistry_UpdateFromNonOwnerIgnored(t *testing.T) {
	reg := New[*fixture, string](nil)
	p1 := &testProvider{elements: []*fixture{{ID: "a", Tags: []string{"orig"}}}}
	p2 := &testProvider{}
	reg.AddProvider(p1)
	reg.AddProvider(p2)

	reg.ElementUpdated(p2, &fixture{ID: "a"}, &fixture{ID: "a", Tags: []string{"hijack"}})

	got, _ := reg.Get("a")
	if got.Tags[0] != "orig" {
		t.Errorf("element = %v, non-owner update must be ignored", got.Tags)
	}
}

func TestRegistry_UIDChangeIsRemovePlusAdd(t *testing.T) {
	reg := New[*fixture, string](nil)
	rec := &changeRecorder{}
	reg.AddChangeListener(rec)

	p := &testProvider{elements: []*fixture{{ID: "a"}}}
	reg.AddProvider(p)

	reg.ElementUpdated(p, &fixture{ID: "a"}, &fixture{ID: "renamed"})

	if _, ok := reg.Get("a"); ok {
		t.Error("old UID still registered after rename")
	}
	if _, ok := reg.Get("renamed"); !ok {
		t.Error("new UID missing after rename")
	}
	if len(rec.removed) != 1 || len(rec.added) != 2 {
		t.Errorf("notifications removed=%d added=%d, want 1 removed and 2 added", len(rec.removed), len(rec.added))
	}
}

func TestRegistry_CopyIsolation(t *testing.T) {
	reg := New[*fixture, string](nil)
	p := &testProvider{elements: []*fixture{{ID: "a", Tags: []string{"keep"}}}}
	reg.AddProvider(p)

	got, _ := reg.Get("a")
	got.Tags[0] = "mutated"

	again, _ := reg.Get("a")
	if again.Tags[0] != "keep" {
		t.Errorf("registry element mutated through returned copy: %v", again.Tags)
	}
}

type panicListener struct{}

func (panicListener) Added(*fixture)             { panic("boom") }
func (panicListener) Updated(*fixture, *fixture) {}
func (panicListener) Removed(*fixture)           {}

func TestRegistry_ListenerPanicRecovered(t *testing.T) {
	reg := New[*fixture, string](nil)
	rec := &changeRecorder{}
	reg.AddChangeListener(panicListener{})
	reg.AddChangeListener(rec)

	p := &testProvider{}
	reg.AddProvider(p)
	p.add(&fixture{ID: "a"})

	if len(rec.added) != 1 {
		t.Errorf("second listener received %d notifications, want 1 (panic must not stop fan-out)", len(rec.added))
	}
}

func TestRegistry_AddSameProviderTwice(t *testing.T) {
	reg := New[*fixture, string](nil)
	p := &testProvider{elements: []*fixture{{ID: "a"}}}
	reg.AddProvider(p)
	reg.AddProvider(p)

	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1 after double attach", reg.Count())
	}
}
