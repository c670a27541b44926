package services

import (
	"sync"

	"github.com/ruletree/engine/pkg/models"
)

// MemoryGroveIndex is an in-memory fsm.GroveIndex: the "compiled" view of
// the Grove a running Evaluator consults to resolve a tree ID to its
// descriptor.
type MemoryGroveIndex struct {
	mu    sync.RWMutex
	trees map[string]models.RuleTreeDescriptor
}

// NewMemoryGroveIndex creates an empty in-memory Grove index.
func NewMemoryGroveIndex() *MemoryGroveIndex {
	return &MemoryGroveIndex{
		trees: make(map[string]models.RuleTreeDescriptor),
	}
}

// LoadTree registers d in the index, overwriting any existing entry for the
// same ID.
func (idx *MemoryGroveIndex) LoadTree(d models.RuleTreeDescriptor) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.trees[d.ID] = d
	return nil
}

// GetTree retrieves a descriptor by tree ID.
func (idx *MemoryGroveIndex) GetTree(treeID string) (models.RuleTreeDescriptor, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	d, ok := idx.trees[treeID]
	return d, ok
}

// RemoveTree removes a descriptor from the index. A no-op if absent.
func (idx *MemoryGroveIndex) RemoveTree(treeID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.trees, treeID)
}

// ListTrees returns every descriptor currently loaded.
func (idx *MemoryGroveIndex) ListTrees() []models.RuleTreeDescriptor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]models.RuleTreeDescriptor, 0, len(idx.trees))
	for _, d := range idx.trees {
		out = append(out, d)
	}
	return out
}
