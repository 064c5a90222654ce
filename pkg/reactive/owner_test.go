package reactive

import (
	"sync"
	"testing"
)

func TestOwnerBasic(t *testing.T) {
	owner := NewOwner(nil)

	if owner.ID() == 0 {
		t.Error("owner should have non-zero ID")
	}
	if owner.Parent() != nil {
		t.Error("root owner should have nil parent")
	}
	if owner.IsDisposed() {
		t.Error("new owner should not be disposed")
	}
}

func TestOwnerDisposeHierarchy(t *testing.T) {
	root := NewOwner(nil)
	child1 := NewOwner(root)
	child2 := NewOwner(root)
	grandchild := NewOwner(child1)

	var order []string
	var mu sync.Mutex
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	grandchild.OnCleanup(record("grandchild"))
	child1.OnCleanup(record("child1"))
	child2.OnCleanup(record("child2"))
	root.OnCleanup(record("root"))

	root.Dispose()

	for _, o := range []*Owner{root, child1, child2, grandchild} {
		if !o.IsDisposed() {
			t.Errorf("owner %d should be disposed", o.ID())
		}
	}

	want := []string{"child2", "grandchild", "child1", "root"}
	if len(order) != len(want) {
		t.Fatalf("expected %d cleanups, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("cleanup order = %v, want %v", order, want)
			break
		}
	}
}

func TestOwnerOnCleanupMultiple(t *testing.T) {
	owner := NewOwner(nil)

	order := []int{}
	owner.OnCleanup(func() { order = append(order, 1) })
	owner.OnCleanup(func() { order = append(order, 2) })
	owner.OnCleanup(func() { order = append(order, 3) })

	owner.Dispose()

	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("expected reverse order [3,2,1], got %v", order)
	}
}

func TestOwnerOnCleanupAfterDispose(t *testing.T) {
	owner := NewOwner(nil)
	owner.Dispose()

	ran := false
	owner.OnCleanup(func() { ran = true })

	if !ran {
		t.Error("cleanup should run immediately on disposed owner")
	}
}

func TestOwnerDoubleDispose(t *testing.T) {
	owner := NewOwner(nil)

	count := 0
	owner.OnCleanup(func() { count++ })

	owner.Dispose()
	owner.Dispose()

	if count != 1 {
		t.Errorf("cleanup should only run once, got %d", count)
	}
}

func TestOwnerDisposeRemovesFromParent(t *testing.T) {
	root := NewOwner(nil)
	child := NewOwner(root)

	child.Dispose()

	root.childrenMu.Lock()
	n := len(root.children)
	root.childrenMu.Unlock()
	if n != 0 {
		t.Errorf("disposed child should be removed from parent, %d children left", n)
	}
}

func TestOwnerValues(t *testing.T) {
	root := NewOwner(nil)
	child := NewOwner(root)

	root.SetValue("theme", "dark")
	child.SetValue("lang", "en")

	if got := child.GetValue("theme"); got != "dark" {
		t.Errorf("child should inherit parent value, got %v", got)
	}
	if got := root.GetValue("lang"); got != nil {
		t.Errorf("parent should not see child value, got %v", got)
	}

	child.SetValue("theme", "light")
	if got := child.GetValue("theme"); got != "light" {
		t.Errorf("child value should shadow parent, got %v", got)
	}
}

func TestOwnerConcurrent(t *testing.T) {
	root := NewOwner(nil)
	var wg sync.WaitGroup
	const numGoroutines = 100

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			child := NewOwner(root)
			child.OnCleanup(func() {})
		}()
	}
	wg.Wait()

	root.Dispose()
}
