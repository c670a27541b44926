package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ruletree/engine/internal/evaluator"
	"github.com/ruletree/engine/internal/source"
	"github.com/ruletree/engine/pkg/catalog"
	"github.com/ruletree/engine/pkg/fsm"
	"github.com/ruletree/engine/pkg/gate"
	"github.com/ruletree/engine/pkg/models"
)

// EvaluationService is the Evaluation Service: the
// gRPC/HTTP-facing wrapper around the Evaluator. It owns the Grove
// registration path (disk + in-memory index, via SafeGroveService) and a
// Transaction-State Gate per registered tree.
type EvaluationService struct {
	grove   *fsm.SafeGroveService
	index   *MemoryGroveIndex
	catalog *catalog.Catalog
	sources *source.Registry

	mu    sync.Mutex
	gates map[string]*gate.Gate
}

// NewEvaluationService wires a registration path (grove) to the live index
// (index) an Evaluator reads trees from. catalog and sources are shared
// across every tree served by this engine instance; either may be nil.
func NewEvaluationService(grove *fsm.SafeGroveService, index *MemoryGroveIndex, cat *catalog.Catalog, sources *source.Registry) *EvaluationService {
	return &EvaluationService{
		grove:   grove,
		index:   index,
		catalog: cat,
		sources: sources,
		gates:   make(map[string]*gate.Gate),
	}
}

// RegisterTree registers a new RuleTree descriptor with FSM-gated atomicity
// across disk and the live index.
func (s *EvaluationService) RegisterTree(ctx context.Context, d models.RuleTreeDescriptor) error {
	return s.grove.RegisterTree(ctx, d)
}

// UpdateTree updates an existing RuleTree descriptor.
func (s *EvaluationService) UpdateTree(ctx context.Context, treeID string, d models.RuleTreeDescriptor) error {
	return s.grove.UpdateTree(ctx, treeID, d)
}

// RemoveTree removes a registered RuleTree.
func (s *EvaluationService) RemoveTree(ctx context.Context, treeID string) error {
	s.mu.Lock()
	delete(s.gates, treeID)
	s.mu.Unlock()
	return s.grove.RemoveTree(ctx, treeID)
}

// GetTree retrieves a registered descriptor.
func (s *EvaluationService) GetTree(ctx context.Context, treeID string) (models.RuleTreeDescriptor, error) {
	return s.grove.GetTree(ctx, treeID)
}

// ListTrees retrieves every registered descriptor.
func (s *EvaluationService) ListTrees(ctx context.Context) ([]models.RuleTreeDescriptor, error) {
	return s.grove.ListTrees(ctx)
}

// GateFor returns the Transaction-State Gate for treeID, creating one on
// first use. Every Validate call for a tree shares the same Gate: ownership
// and confirmation are scoped per-tree, not per-call.
func (s *EvaluationService) GateFor(treeID string) *gate.Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[treeID]
	if !ok {
		g = gate.New()
		s.gates[treeID] = g
	}
	return g
}

// Validate builds an Evaluator for treeID from the live index and runs a
// full pre-flight/walk/post-flight cycle against incoming.
func (s *EvaluationService) Validate(ctx context.Context, treeID string, incoming *models.Product) (*models.RuleTreeReport, error) {
	d, ok := s.index.GetTree(treeID)
	if !ok || d.Tree == nil {
		return nil, fmt.Errorf("tree not registered: %s", treeID)
	}

	ev := evaluator.New(treeID, d.Tree).WithGate(s.GateFor(treeID))
	if s.catalog != nil {
		ev = ev.WithCatalog(s.catalog)
	}
	if s.sources != nil {
		ev = ev.WithSources(s.sources)
	}
	return ev.Validate(ctx, incoming)
}
