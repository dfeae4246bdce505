package frame

import "testing"

func TestLookupCrossesNonIsolatedScopes(t *testing.T) {
	root := New()
	root.Set("x", 1, false)
	child := root.Push(false)
	v, ok := child.Lookup("x")
	if !ok || v != 1 {
		t.Fatalf("expected x=1 visible from child scope, got %v, %v", v, ok)
	}
}

func TestIsolatedScopeHidesParent(t *testing.T) {
	root := New()
	root.Set("x", 1, false)
	child := root.Push(true)
	if _, ok := child.Lookup("x"); ok {
		t.Fatalf("expected isolated scope not to see parent binding")
	}
}

func TestShadowingDoesNotMutateParent(t *testing.T) {
	root := New()
	root.Set("x", 1, false)
	child := root.Push(false)
	child.Set("x", 2, false)

	if v, _ := child.Lookup("x"); v != 2 {
		t.Fatalf("expected child to see its own shadow, got %v", v)
	}
	if v, _ := root.Lookup("x"); v != 1 {
		t.Fatalf("expected root unaffected by child shadow, got %v", v)
	}
}

func TestSetResolveUpUpdatesAncestor(t *testing.T) {
	root := New()
	root.Set("x", 1, false)
	child := root.Push(false)
	child.Set("x", 2, true)

	if v, _ := root.Lookup("x"); v != 2 {
		t.Fatalf("expected resolveUp to rebind the ancestor in place, got %v", v)
	}
}

func TestSetResolveUpStopsAtIsolationBoundary(t *testing.T) {
	root := New()
	root.Set("x", 1, false)
	isolated := root.Push(true)
	child := isolated.Push(false)
	child.Set("x", 2, true)

	if _, ok := isolated.Lookup("x"); ok {
		t.Fatalf("expected no binding introduced past the isolation boundary")
	}
	if v, _ := root.Lookup("x"); v != 1 {
		t.Fatalf("expected root untouched across an isolation boundary, got %v", v)
	}
}

func TestTopLevelFlag(t *testing.T) {
	root := New()
	if !root.IsTopLevel() {
		t.Fatalf("expected New() to be top-level")
	}
	if root.Push(false).IsTopLevel() {
		t.Fatalf("expected a pushed child not to be top-level")
	}
}
