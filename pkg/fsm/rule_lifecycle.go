package fsm

import (
	"fmt"
	"sync"
)

// TreeLifecycleState represents all possible states in a RuleTree's
// registration lifecycle within the Grove.
type TreeLifecycleState int

const (
	// TreeNonExistent: tree doesn't exist (initial state)
	TreeNonExistent TreeLifecycleState = iota

	// TreeDraft: tree submitted but not yet validated
	TreeDraft

	// TreeValidated: tree passed structural validation but not compiled
	TreeValidated

	// TreeCompiled: tree's operators/arith expressions resolved, ready to load
	TreeCompiled

	// TreeRegistered: tree is live in the Grove (stable state)
	TreeRegistered

	// TreeUpdating: an update is in progress (blocks concurrent removal)
	TreeUpdating

	// TreeRemoving: removal from the Grove is in progress
	TreeRemoving
)

func (s TreeLifecycleState) String() string {
	switch s {
	case TreeNonExistent:
		return "nonexistent"
	case TreeDraft:
		return "draft"
	case TreeValidated:
		return "validated"
	case TreeCompiled:
		return "compiled"
	case TreeRegistered:
		return "registered"
	case TreeUpdating:
		return "updating"
	case TreeRemoving:
		return "removing"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// TreeLifecycleEvent represents events that trigger state transitions.
type TreeLifecycleEvent int

const (
	EventSubmit TreeLifecycleEvent = iota
	EventValidate
	EventValidationFailed
	EventCompile
	EventCompilationFailed
	EventRegister
	EventRegistrationFailed
	EventUpdate
	EventRemove
	EventRemoveComplete
	EventRemoveFailed
	EventCancel
)

func (e TreeLifecycleEvent) String() string {
	switch e {
	case EventSubmit:
		return "submit"
	case EventValidate:
		return "validate"
	case EventValidationFailed:
		return "validation_failed"
	case EventCompile:
		return "compile"
	case EventCompilationFailed:
		return "compilation_failed"
	case EventRegister:
		return "register"
	case EventRegistrationFailed:
		return "registration_failed"
	case EventUpdate:
		return "update"
	case EventRemove:
		return "remove"
	case EventRemoveComplete:
		return "remove_complete"
	case EventRemoveFailed:
		return "remove_failed"
	case EventCancel:
		return "cancel"
	default:
		return fmt.Sprintf("unknown_event(%d)", e)
	}
}

// InvalidTransitionError indicates an illegal state transition.
type InvalidTransitionError struct {
	TreeID string
	From   TreeLifecycleState
	Event  TreeLifecycleEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("tree %s: invalid transition from %s via event %s",
		e.TreeID, e.From, e.Event)
}

// TreeLifecycleFSM manages the Grove registration lifecycle of a single
// RuleTree.
type TreeLifecycleFSM struct {
	treeID string
	state  TreeLifecycleState
	mu     sync.RWMutex

	previousState TreeLifecycleState
}

// NewTreeLifecycleFSM creates a new FSM for a RuleTree.
func NewTreeLifecycleFSM(treeID string) *TreeLifecycleFSM {
	return &TreeLifecycleFSM{
		treeID:        treeID,
		state:         TreeNonExistent,
		previousState: TreeNonExistent,
	}
}

// State returns the current state (thread-safe).
func (fsm *TreeLifecycleFSM) State() TreeLifecycleState {
	fsm.mu.RLock()
	defer fsm.mu.RUnlock()
	return fsm.state
}

// Transition attempts a state transition via an event. Returns an error if
// the transition is invalid for the current state.
func (fsm *TreeLifecycleFSM) Transition(event TreeLifecycleEvent) error {
	fsm.mu.Lock()
	defer fsm.mu.Unlock()

	nextState, valid := fsm.validTransitions()[fsm.state][event]
	if !valid {
		return &InvalidTransitionError{
			TreeID: fsm.treeID,
			From:   fsm.state,
			Event:  event,
		}
	}

	fsm.previousState = fsm.state
	fsm.state = nextState
	return nil
}

// Rollback returns to the previous state (used when an operation fails).
func (fsm *TreeLifecycleFSM) Rollback() {
	fsm.mu.Lock()
	defer fsm.mu.Unlock()

	fsm.state = fsm.previousState
}

// ValidEvents returns events that are legal for the current state.
func (fsm *TreeLifecycleFSM) ValidEvents() []TreeLifecycleEvent {
	fsm.mu.RLock()
	defer fsm.mu.RUnlock()

	validMap := fsm.validTransitions()[fsm.state]
	events := make([]TreeLifecycleEvent, 0, len(validMap))
	for event := range validMap {
		events = append(events, event)
	}
	return events
}

// validTransitions defines the state machine transition table:
// CurrentState -> Event -> NextState.
func (fsm *TreeLifecycleFSM) validTransitions() map[TreeLifecycleState]map[TreeLifecycleEvent]TreeLifecycleState {
	return map[TreeLifecycleState]map[TreeLifecycleEvent]TreeLifecycleState{
		TreeNonExistent: {
			EventSubmit: TreeDraft,
		},
		TreeDraft: {
			EventValidate:         TreeValidated,
			EventValidationFailed: TreeNonExistent,
			EventCancel:           TreeNonExistent,
		},
		TreeValidated: {
			EventCompile:           TreeCompiled,
			EventCompilationFailed: TreeDraft,
			EventCancel:            TreeNonExistent,
		},
		TreeCompiled: {
			EventRegister:           TreeRegistered,
			EventRegistrationFailed: TreeValidated,
		},
		TreeRegistered: {
			EventUpdate: TreeUpdating,
			EventRemove: TreeRemoving,
		},
		TreeUpdating: {
			EventValidate:         TreeValidated,
			EventValidationFailed: TreeRegistered,
			EventCancel:           TreeRegistered,
		},
		TreeRemoving: {
			EventRemoveComplete: TreeNonExistent,
			EventRemoveFailed:   TreeRegistered,
		},
	}
}

// TreeLifecycleRegistry manages FSMs for every tree known to the Grove.
type TreeLifecycleRegistry struct {
	mu   sync.RWMutex
	fsms map[string]*TreeLifecycleFSM
}

// NewTreeLifecycleRegistry creates a registry for tracking tree FSMs.
func NewTreeLifecycleRegistry() *TreeLifecycleRegistry {
	return &TreeLifecycleRegistry{
		fsms: make(map[string]*TreeLifecycleFSM),
	}
}

// Get retrieves or creates an FSM for a tree.
func (r *TreeLifecycleRegistry) Get(treeID string) *TreeLifecycleFSM {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fsm, exists := r.fsms[treeID]; exists {
		return fsm
	}

	fsm := NewTreeLifecycleFSM(treeID)
	r.fsms[treeID] = fsm
	return fsm
}

// Remove removes a tree's FSM (called after successful removal).
func (r *TreeLifecycleRegistry) Remove(treeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fsms, treeID)
}

// Snapshot returns the current state of every tracked tree (for debugging).
func (r *TreeLifecycleRegistry) Snapshot() map[string]TreeLifecycleState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]TreeLifecycleState, len(r.fsms))
	for treeID, fsm := range r.fsms {
		snapshot[treeID] = fsm.State()
	}
	return snapshot
}
