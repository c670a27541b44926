package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ruletree/engine/pkg/models"
)

// DiskGroveStore persists RuleTree descriptors to disk for recovery after
// restart. Implements fsm.GroveDescriptorStore.
type DiskGroveStore struct {
	mu          sync.RWMutex
	descriptors map[string]models.RuleTreeDescriptor
	dataDir     string
	filePath    string
	fs          FileSystem // Injected filesystem for testing
}

// NewDiskGroveStore creates a Grove descriptor store backed by disk
// persistence.
func NewDiskGroveStore(dataDir string) (*DiskGroveStore, error) {
	return NewDiskGroveStoreWithFS(dataDir, &RealFileSystem{})
}

// NewDiskGroveStoreWithFS creates a Grove descriptor store with an
// injectable filesystem (for testing).
func NewDiskGroveStoreWithFS(dataDir string, fs FileSystem) (*DiskGroveStore, error) {
	if err := fs.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &DiskGroveStore{
		descriptors: make(map[string]models.RuleTreeDescriptor),
		dataDir:     dataDir,
		filePath:    filepath.Join(dataDir, "grove.json"),
		fs:          fs,
	}

	if err := store.load(); err != nil {
		if _, statErr := fs.Stat(store.filePath); os.IsNotExist(statErr) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to load grove: %w", err)
	}

	return store, nil
}

// Create adds a new descriptor and persists to disk.
func (s *DiskGroveStore) Create(ctx context.Context, d models.RuleTreeDescriptor) (models.RuleTreeDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		return models.RuleTreeDescriptor{}, fmt.Errorf("descriptor ID must not be empty")
	}
	if _, exists := s.descriptors[d.ID]; exists {
		return models.RuleTreeDescriptor{}, fmt.Errorf("tree %s already exists", d.ID)
	}

	s.descriptors[d.ID] = d
	if err := s.persist(); err != nil {
		delete(s.descriptors, d.ID)
		return models.RuleTreeDescriptor{}, err
	}
	return d, nil
}

// Update replaces an existing descriptor and persists to disk.
func (s *DiskGroveStore) Update(ctx context.Context, id string, d models.RuleTreeDescriptor) (models.RuleTreeDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.descriptors[id]
	if !exists {
		return models.RuleTreeDescriptor{}, fmt.Errorf("tree %s not found", id)
	}

	d.ID = id
	s.descriptors[id] = d
	if err := s.persist(); err != nil {
		s.descriptors[id] = prev
		return models.RuleTreeDescriptor{}, err
	}
	return d, nil
}

// Delete removes a descriptor and persists to disk.
func (s *DiskGroveStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.descriptors[id]
	if !exists {
		return fmt.Errorf("tree %s not found", id)
	}

	delete(s.descriptors, id)
	if err := s.persist(); err != nil {
		s.descriptors[id] = prev
		return err
	}
	return nil
}

// Get retrieves a single descriptor.
func (s *DiskGroveStore) Get(ctx context.Context, id string) (models.RuleTreeDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.descriptors[id]
	if !exists {
		return models.RuleTreeDescriptor{}, fmt.Errorf("tree %s not found", id)
	}
	return d, nil
}

// List returns every descriptor.
func (s *DiskGroveStore) List(ctx context.Context) ([]models.RuleTreeDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RuleTreeDescriptor, 0, len(s.descriptors))
	for _, d := range s.descriptors {
		out = append(out, d)
	}
	return out, nil
}

// persist writes every descriptor to disk atomically. Descriptor.Tree is
// dropped from the persisted representation: RuleTree bodies are reloaded
// from their source registration payload, not reconstructed from JSON, so
// only the aggregated metadata (cost, required attributes) is durable here.
func (s *DiskGroveStore) persist() error {
	type diskRecord struct {
		ID                string   `json:"id"`
		MinCost           int      `json:"min_cost"`
		MaxCost           int      `json:"max_cost"`
		RequiredAttrNames []string `json:"required_attr_names"`
	}

	records := make(map[string]diskRecord, len(s.descriptors))
	for id, d := range s.descriptors {
		records[id] = diskRecord{
			ID:                d.ID,
			MinCost:           d.MinCost,
			MaxCost:           d.MaxCost,
			RequiredAttrNames: d.RequiredAttrNames,
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal grove: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := s.fs.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write grove: %w", err)
	}
	if err := s.fs.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename grove file: %w", err)
	}
	return nil
}

// load reads descriptor metadata from disk. Tree is left nil: callers that
// need the evaluable RuleTree must re-register it through the index.
func (s *DiskGroveStore) load() error {
	data, err := s.fs.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	type diskRecord struct {
		ID                string   `json:"id"`
		MinCost           int      `json:"min_cost"`
		MaxCost           int      `json:"max_cost"`
		RequiredAttrNames []string `json:"required_attr_names"`
	}

	records := make(map[string]diskRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal grove: %w", err)
	}

	descriptors := make(map[string]models.RuleTreeDescriptor, len(records))
	for id, r := range records {
		descriptors[id] = models.RuleTreeDescriptor{
			ID:                r.ID,
			MinCost:           r.MinCost,
			MaxCost:           r.MaxCost,
			RequiredAttrNames: r.RequiredAttrNames,
		}
	}

	s.descriptors = descriptors
	return nil
}

// Count returns the number of descriptors.
func (s *DiskGroveStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.descriptors)
}
