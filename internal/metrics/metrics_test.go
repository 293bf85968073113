package metrics

import "testing"

func TestNewRegistersAllCollectors(t *testing.T) {
	c := New()
	if c.Registry == nil {
		t.Fatal("expected a non-nil registry")
	}
	mfs, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestCollectorMethodsDontPanic(t *testing.T) {
	c := New()
	c.ClientAttached()
	c.ClientAttached()
	c.ClientDetached()
	c.BackendDialed("ok")
	c.BackendDialed("error")
	c.BackendLost()
	c.MessageFiltered("frontend", "transmit")
	c.MessageFiltered("backend", "spoof")
	c.QueryObserved("SELECT")
	c.SavepointsActive(3)
	c.BytesToBackend(128)
	c.BytesToClient(64)
}

func TestNewIsIndependentAcrossCalls(t *testing.T) {
	a := New()
	b := New()
	a.ClientAttached()

	amfs, _ := a.Registry.Gather()
	bmfs, _ := b.Registry.Gather()
	if len(amfs) != len(bmfs) {
		t.Fatalf("expected independent registries to expose the same metric families, got %d vs %d", len(amfs), len(bmfs))
	}
}
