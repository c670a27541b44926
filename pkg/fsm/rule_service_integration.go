package fsm

import (
	"context"
	"fmt"

	"github.com/ruletree/engine/pkg/models"
)

// GroveDescriptorStore persists RuleTree descriptors (e.g. to disk).
type GroveDescriptorStore interface {
	Create(ctx context.Context, d models.RuleTreeDescriptor) (models.RuleTreeDescriptor, error)
	Update(ctx context.Context, id string, d models.RuleTreeDescriptor) (models.RuleTreeDescriptor, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (models.RuleTreeDescriptor, error)
	List(ctx context.Context) ([]models.RuleTreeDescriptor, error)
}

// GroveIndex is the in-memory, "compiled" view of the Grove that a running
// Evaluator consults to resolve a tree ID to its descriptor.
type GroveIndex interface {
	LoadTree(d models.RuleTreeDescriptor) error
	GetTree(treeID string) (models.RuleTreeDescriptor, bool)
	RemoveTree(treeID string)
	ListTrees() []models.RuleTreeDescriptor
}

// SafeGroveService wraps Grove registration with FSM-based transactional
// safety: a tree is either registered in both the disk store and the live
// index, or in neither — never a state where one has it and the other
// doesn't.
type SafeGroveService struct {
	index    GroveIndex
	store    GroveDescriptorStore
	registry *TreeLifecycleRegistry
}

// NewSafeGroveService creates a Grove registration service with FSM
// transaction safety.
func NewSafeGroveService(index GroveIndex, store GroveDescriptorStore) *SafeGroveService {
	return &SafeGroveService{
		index:    index,
		store:    store,
		registry: NewTreeLifecycleRegistry(),
	}
}

// RegisterTree registers a RuleTree descriptor with FSM-based atomicity.
// Guarantees: either (disk + index) or neither, never an inconsistent state.
func (s *SafeGroveService) RegisterTree(ctx context.Context, d models.RuleTreeDescriptor) error {
	fsm := s.registry.Get(d.ID)

	if err := fsm.Transition(EventSubmit); err != nil {
		return fmt.Errorf("tree already registered: %w", err)
	}

	if d.Tree == nil || d.Tree.Root == nil {
		fsm.Transition(EventValidationFailed)
		return fmt.Errorf("validation failed: tree has no root RuleSet")
	}
	if err := fsm.Transition(EventValidate); err != nil {
		return err
	}

	if err := s.index.LoadTree(d); err != nil {
		fsm.Transition(EventCompilationFailed)
		return fmt.Errorf("compilation failed: %w", err)
	}
	if err := fsm.Transition(EventCompile); err != nil {
		return err
	}

	if s.store != nil {
		if _, err := s.store.Create(ctx, d); err != nil {
			s.index.RemoveTree(d.ID)
			fsm.Transition(EventRegistrationFailed)
			return fmt.Errorf("persistence failed: %w", err)
		}
	}

	if err := fsm.Transition(EventRegister); err != nil {
		return err
	}
	return nil
}

// UpdateTree updates a registered RuleTree descriptor with FSM-based
// atomicity, preventing concurrent update/remove interleaving on the same
// tree ID.
func (s *SafeGroveService) UpdateTree(ctx context.Context, treeID string, d models.RuleTreeDescriptor) error {
	fsm := s.registry.Get(treeID)

	if err := fsm.Transition(EventUpdate); err != nil {
		return fmt.Errorf("cannot update tree: %w", err)
	}

	if d.Tree == nil || d.Tree.Root == nil {
		fsm.Rollback()
		return fmt.Errorf("validation failed: tree has no root RuleSet")
	}
	if err := fsm.Transition(EventValidate); err != nil {
		fsm.Rollback()
		return err
	}

	if s.store != nil {
		if _, err := s.store.Update(ctx, treeID, d); err != nil {
			fsm.Rollback()
			return fmt.Errorf("persistence failed: %w", err)
		}
	}

	if err := s.index.LoadTree(d); err != nil {
		fsm.Rollback()
		return fmt.Errorf("compilation failed: %w", err)
	}
	if err := fsm.Transition(EventCompile); err != nil {
		fsm.Rollback()
		return err
	}

	if err := fsm.Transition(EventRegister); err != nil {
		return err
	}
	return nil
}

// RemoveTree removes a registered RuleTree with FSM-based atomicity.
func (s *SafeGroveService) RemoveTree(ctx context.Context, treeID string) error {
	fsm := s.registry.Get(treeID)

	if err := fsm.Transition(EventRemove); err != nil {
		return fmt.Errorf("cannot remove tree: %w", err)
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, treeID); err != nil {
			fsm.Transition(EventRemoveFailed)
			return fmt.Errorf("disk deletion failed: %w", err)
		}
	}

	s.index.RemoveTree(treeID)

	if err := fsm.Transition(EventRemoveComplete); err != nil {
		return err
	}

	s.registry.Remove(treeID)
	return nil
}

// GetTree retrieves a registered descriptor (no FSM needed for read-only).
func (s *SafeGroveService) GetTree(ctx context.Context, treeID string) (models.RuleTreeDescriptor, error) {
	if s.store != nil {
		return s.store.Get(ctx, treeID)
	}
	d, ok := s.index.GetTree(treeID)
	if !ok {
		return models.RuleTreeDescriptor{}, fmt.Errorf("tree not found: %s", treeID)
	}
	return d, nil
}

// ListTrees retrieves every registered descriptor (no FSM needed for
// read-only).
func (s *SafeGroveService) ListTrees(ctx context.Context) ([]models.RuleTreeDescriptor, error) {
	if s.store != nil {
		return s.store.List(ctx)
	}
	return s.index.ListTrees(), nil
}

// GetTreeState returns the FSM state of a tree (for debugging/monitoring).
func (s *SafeGroveService) GetTreeState(treeID string) TreeLifecycleState {
	fsm := s.registry.Get(treeID)
	return fsm.State()
}

// GetAllTreeStates returns FSM states for every tracked tree.
func (s *SafeGroveService) GetAllTreeStates() map[string]TreeLifecycleState {
	return s.registry.Snapshot()
}
