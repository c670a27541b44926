package services

import (
	"context"
	"sync"
	"testing"

	"github.com/ruletree/engine/pkg/models"
)

func TestGroveStore_CreateAndGet(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	d := models.RuleTreeDescriptor{ID: "tree-1", MinCost: 1, MaxCost: 3}

	created, err := store.Create(ctx, d)
	if err != nil {
		t.Fatalf("failed to create descriptor: %v", err)
	}
	if created.ID != "tree-1" {
		t.Errorf("expected ID tree-1, got %s", created.ID)
	}

	retrieved, err := store.Get(ctx, "tree-1")
	if err != nil {
		t.Fatalf("failed to get descriptor: %v", err)
	}
	if retrieved.MaxCost != 3 {
		t.Errorf("expected MaxCost 3, got %d", retrieved.MaxCost)
	}
}

func TestGroveStore_CreateEmptyIDRejected(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	_, err := store.Create(ctx, models.RuleTreeDescriptor{})
	if err == nil {
		t.Fatal("expected error for empty descriptor ID, got nil")
	}
}

func TestGroveStore_CreateDuplicateID(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	d1 := models.RuleTreeDescriptor{ID: "dup", MinCost: 1}
	d2 := models.RuleTreeDescriptor{ID: "dup", MinCost: 2}

	if _, err := store.Create(ctx, d1); err != nil {
		t.Fatalf("failed to create first descriptor: %v", err)
	}
	if _, err := store.Create(ctx, d2); err == nil {
		t.Error("expected error for duplicate ID, got nil")
	}
}

func TestGroveStore_GetNotFound(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "nonexistent"); err == nil {
		t.Error("expected error for nonexistent descriptor, got nil")
	}
}

func TestGroveStore_List(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	descriptors, err := store.List(ctx)
	if err != nil {
		t.Fatalf("failed to list descriptors: %v", err)
	}
	if len(descriptors) != 0 {
		t.Errorf("expected 0 descriptors, got %d", len(descriptors))
	}

	store.Create(ctx, models.RuleTreeDescriptor{ID: "t1"})
	store.Create(ctx, models.RuleTreeDescriptor{ID: "t2"})

	descriptors, err = store.List(ctx)
	if err != nil {
		t.Fatalf("failed to list descriptors: %v", err)
	}
	if len(descriptors) != 2 {
		t.Errorf("expected 2 descriptors, got %d", len(descriptors))
	}
}

func TestGroveStore_Update(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	store.Create(ctx, models.RuleTreeDescriptor{ID: "t1", MinCost: 1})

	result, err := store.Update(ctx, "t1", models.RuleTreeDescriptor{MinCost: 9, MaxCost: 10})
	if err != nil {
		t.Fatalf("failed to update descriptor: %v", err)
	}
	if result.ID != "t1" {
		t.Errorf("expected ID preserved, got %s", result.ID)
	}
	if result.MaxCost != 10 {
		t.Errorf("expected MaxCost 10, got %d", result.MaxCost)
	}
}

func TestGroveStore_UpdateNotFound(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	_, err := store.Update(ctx, "nonexistent", models.RuleTreeDescriptor{})
	if err == nil {
		t.Error("expected error for nonexistent descriptor, got nil")
	}
}

func TestGroveStore_Delete(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	store.Create(ctx, models.RuleTreeDescriptor{ID: "t1"})

	if err := store.Delete(ctx, "t1"); err != nil {
		t.Fatalf("failed to delete descriptor: %v", err)
	}
	if _, err := store.Get(ctx, "t1"); err == nil {
		t.Error("expected error for deleted descriptor, got nil")
	}
}

func TestGroveStore_DeleteNotFound(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	if err := store.Delete(ctx, "nonexistent"); err == nil {
		t.Error("expected error for nonexistent descriptor, got nil")
	}
}

func TestGroveStore_Grove(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	store.Create(ctx, models.RuleTreeDescriptor{ID: "t1", MinCost: 1, MaxCost: 2, RequiredAttrNames: []string{"Age"}})
	store.Create(ctx, models.RuleTreeDescriptor{ID: "t2", MinCost: 3, MaxCost: 5, RequiredAttrNames: []string{"Price"}})

	g := store.Grove(ctx)
	if g.Len() != 2 {
		t.Fatalf("expected 2 descriptors in grove, got %d", g.Len())
	}
	if g.TotalMinCost() != 4 {
		t.Errorf("expected total min cost 4, got %d", g.TotalMinCost())
	}
	if g.TotalMaxCost() != 7 {
		t.Errorf("expected total max cost 7, got %d", g.TotalMaxCost())
	}
}

func TestGroveStore_ConcurrentAccess(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			d := models.RuleTreeDescriptor{ID: uniqueTreeID(idx)}
			_, _ = store.Create(ctx, d)
		}(i)
	}
	wg.Wait()

	descriptors, err := store.List(ctx)
	if err != nil {
		t.Fatalf("failed to list descriptors: %v", err)
	}
	if len(descriptors) != numGoroutines {
		t.Errorf("expected %d descriptors, got %d", numGoroutines, len(descriptors))
	}
}

func TestGroveStore_ConcurrentReadWrite(t *testing.T) {
	store := NewGroveStore()
	ctx := context.Background()

	store.Create(ctx, models.RuleTreeDescriptor{ID: "shared-tree"})

	var wg sync.WaitGroup
	numGoroutines := 50

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Get(ctx, "shared-tree")
		}()
	}
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Update(ctx, "shared-tree", models.RuleTreeDescriptor{MinCost: 1})
		}()
	}
	wg.Wait()

	if _, err := store.Get(ctx, "shared-tree"); err != nil {
		t.Errorf("store corrupted after concurrent access: %v", err)
	}
}

func uniqueTreeID(idx int) string {
	const hex = "0123456789abcdef"
	b := []byte("tree-0000")
	for i := len(b) - 1; idx > 0 && i >= len(b)-4; i-- {
		b[i] = hex[idx%16]
		idx /= 16
	}
	return string(b)
}
