package namespace

import (
	"errors"
	"testing"

	"github.com/tolelom/cardtable/internal/testutil"
)

func TestPutGetDelete(t *testing.T) {
	root := NewRoot(testutil.NewMemDB())
	ns, err := root.Namespace("CacheMap", 0)
	if err != nil {
		t.Fatalf("Namespace: %v", err)
	}

	var got string
	if err := ns.Get("missing", &got); !errors.Is(err, ErrNoSuchKey) {
		t.Fatalf("Get(missing) = %v, want ErrNoSuchKey", err)
	}

	if err := ns.Put("k1", "hello"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ns.Get("k1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "hello" {
		t.Fatalf("Get returned %q, want %q", got, "hello")
	}

	if err := ns.Delete("k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := ns.Get("k1", &got); !errors.Is(err, ErrNoSuchKey) {
		t.Fatalf("Get after delete = %v, want ErrNoSuchKey", err)
	}
}

func TestNamespacesDoNotCollide(t *testing.T) {
	root := NewRoot(testutil.NewMemDB())
	a, _ := root.Namespace("Games", 0)
	b, _ := root.Namespace("QueryCache", 0)

	if err := a.Put("x", "from-a"); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	if err := b.Put("x", "from-b"); err != nil {
		t.Fatalf("Put b: %v", err)
	}

	var got string
	if err := a.Get("x", &got); err != nil || got != "from-a" {
		t.Fatalf("a.Get(x) = %q, %v, want from-a, nil", got, err)
	}
	if err := b.Get("x", &got); err != nil || got != "from-b" {
		t.Fatalf("b.Get(x) = %q, %v, want from-b, nil", got, err)
	}
}

func TestSubspaceIsolatesKeys(t *testing.T) {
	root := NewRoot(testutil.NewMemDB())
	games, _ := root.Namespace("Games", 0)
	scopeA := games.Subspace("scope-a")
	scopeB := games.Subspace("scope-b")

	scopeA.Put("g1", 1)
	scopeB.Put("g1", 2)

	keysA, err := scopeA.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keysA) != 1 || keysA[0] != "g1" {
		t.Fatalf("scopeA.List() = %v, want [g1]", keysA)
	}

	var v int
	if err := scopeA.Get("g1", &v); err != nil || v != 1 {
		t.Fatalf("scopeA.Get(g1) = %d, %v, want 1, nil", v, err)
	}
	if err := scopeB.Get("g1", &v); err != nil || v != 2 {
		t.Fatalf("scopeB.Get(g1) = %d, %v, want 2, nil", v, err)
	}
}

func TestListNamespacesRecordsEveryNamespace(t *testing.T) {
	root := NewRoot(testutil.NewMemDB())
	if _, err := root.Namespace("Games", 0); err != nil {
		t.Fatalf("Namespace(Games): %v", err)
	}
	if _, err := root.Namespace("CacheMap", 0); err != nil {
		t.Fatalf("Namespace(CacheMap): %v", err)
	}

	names, err := root.ListNamespaces()
	if err != nil {
		t.Fatalf("ListNamespaces: %v", err)
	}
	want := map[string]bool{"Games": true, "CacheMap": true}
	if len(names) != len(want) {
		t.Fatalf("ListNamespaces() = %v, want keys %v", names, want)
	}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected namespace %q", n)
		}
	}
}
