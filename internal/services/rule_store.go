package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ruletree/engine/pkg/models"
)

// GroveStore provides in-memory storage for RuleTree descriptors registered
// in the Grove. Separate from the pure-data models.Grove
// container: GroveStore is the keyed, mutable index a registration service
// operates against; models.Grove is the ordered composition handed to
// consumers that need aggregated cost/attribute metadata.
type GroveStore struct {
	mu          sync.RWMutex
	descriptors map[string]models.RuleTreeDescriptor
}

// NewGroveStore creates a new in-memory Grove descriptor store.
func NewGroveStore() *GroveStore {
	return &GroveStore{
		descriptors: make(map[string]models.RuleTreeDescriptor),
	}
}

// Create registers a new descriptor under its own ID.
func (s *GroveStore) Create(ctx context.Context, d models.RuleTreeDescriptor) (models.RuleTreeDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		return models.RuleTreeDescriptor{}, fmt.Errorf("descriptor ID must not be empty")
	}
	if _, exists := s.descriptors[d.ID]; exists {
		return models.RuleTreeDescriptor{}, fmt.Errorf("tree with ID %s already registered", d.ID)
	}

	s.descriptors[d.ID] = d
	return d, nil
}

// Get retrieves a descriptor by ID.
func (s *GroveStore) Get(ctx context.Context, id string) (models.RuleTreeDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.descriptors[id]
	if !exists {
		return models.RuleTreeDescriptor{}, fmt.Errorf("tree not found: %s", id)
	}
	return d, nil
}

// List returns every registered descriptor.
func (s *GroveStore) List(ctx context.Context) ([]models.RuleTreeDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RuleTreeDescriptor, 0, len(s.descriptors))
	for _, d := range s.descriptors {
		out = append(out, d)
	}
	return out, nil
}

// Update replaces an existing descriptor, preserving its original ID.
func (s *GroveStore) Update(ctx context.Context, id string, d models.RuleTreeDescriptor) (models.RuleTreeDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.descriptors[id]; !exists {
		return models.RuleTreeDescriptor{}, fmt.Errorf("tree not found: %s", id)
	}

	d.ID = id
	s.descriptors[id] = d
	return d, nil
}

// Delete removes a descriptor.
func (s *GroveStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.descriptors[id]; !exists {
		return fmt.Errorf("tree not found: %s", id)
	}

	delete(s.descriptors, id)
	return nil
}

// Grove assembles every registered descriptor into an ordered models.Grove
// snapshot, for callers that need the aggregated cost/attribute view.
func (s *GroveStore) Grove(ctx context.Context) *models.Grove {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := models.NewGrove()
	for _, d := range s.descriptors {
		g.Add(d)
	}
	return g
}
