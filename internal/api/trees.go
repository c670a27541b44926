package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/ruletree/engine/internal/services"
	"github.com/ruletree/engine/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TreeHandlers provides the HTTP/JSON surface over the Evaluation Service:
// Grove registration and RuleTree validation as an optional outer surface
// alongside the gRPC service.
type TreeHandlers struct {
	svc    *services.EvaluationService
	tracer trace.Tracer
}

// NewTreeHandlers creates tree/grove API handlers.
func NewTreeHandlers(svc *services.EvaluationService, tracer trace.Tracer) *TreeHandlers {
	return &TreeHandlers{svc: svc, tracer: tracer}
}

// treeDescriptorWire is the JSON wire shape for a RuleTreeDescriptor. Root is
// decoded straight into models.RuleSet: the XML dialect that normally
// produces a RuleTree is out of scope; callers post the
// already-parsed tree shape.
type treeDescriptorWire struct {
	ID                string           `json:"id"`
	Root              *models.RuleSet  `json:"root"`
	MinCost           int              `json:"min_cost"`
	MaxCost           int              `json:"max_cost"`
	RequiredAttrNames []string         `json:"required_attr_names"`
}

func (w treeDescriptorWire) toDescriptor() models.RuleTreeDescriptor {
	tree := models.NewRuleTree(w.Root)
	registerCustomOperators(tree, w.Root)
	return models.RuleTreeDescriptor{
		ID:                w.ID,
		Tree:              tree,
		MinCost:           w.MinCost,
		MaxCost:           w.MaxCost,
		RequiredAttrNames: w.RequiredAttrNames,
	}
}

// registerCustomOperators walks set and its children, recording every
// OpCustom operator name into tree's registry. A real parser does this
// incrementally as it builds the tree; here the whole tree
// arrives at once, so registration happens in a single post-decode pass.
func registerCustomOperators(tree *models.RuleTree, set *models.RuleSet) {
	if set == nil {
		return
	}
	for _, rule := range set.Rules {
		if rule.Operator.Tag == models.OpCustom {
			tree.RegisterCustomOperator(rule.Operator.CustomOpName)
		}
	}
	for _, child := range set.Children {
		registerCustomOperators(tree, child)
	}
}

func descriptorToWire(d models.RuleTreeDescriptor) treeDescriptorWire {
	var root *models.RuleSet
	if d.Tree != nil {
		root = d.Tree.Root
	}
	return treeDescriptorWire{
		ID:                d.ID,
		Root:              root,
		MinCost:           d.MinCost,
		MaxCost:           d.MaxCost,
		RequiredAttrNames: d.RequiredAttrNames,
	}
}

// RegisterTree handles POST /v1/trees.
func (h *TreeHandlers) RegisterTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "RegisterTree")
		defer span.End()
	}

	var wire treeDescriptorWire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if wire.Root == nil {
		respondError(w, http.StatusBadRequest, "missing required field: root")
		return
	}
	if wire.ID == "" {
		wire.ID = uuid.New().String()
	}

	d := wire.toDescriptor()
	if err := h.svc.RegisterTree(ctx, d); err != nil {
		respondError(w, http.StatusConflict, "failed to register tree: "+err.Error())
		return
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("tree.id", d.ID))
	}

	respondJSON(w, http.StatusCreated, descriptorToWire(d))
}

// GetTree handles GET /v1/trees/{id}.
func (h *TreeHandlers) GetTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "GetTree")
		defer span.End()
	}

	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing tree id")
		return
	}

	d, err := h.svc.GetTree(ctx, id)
	if err != nil {
		respondError(w, http.StatusNotFound, "tree not found: "+id)
		return
	}

	respondJSON(w, http.StatusOK, descriptorToWire(d))
}

// ListTrees handles GET /v1/trees.
func (h *TreeHandlers) ListTrees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trees, err := h.svc.ListTrees(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list trees: "+err.Error())
		return
	}

	wires := make([]treeDescriptorWire, 0, len(trees))
	for _, d := range trees {
		wires = append(wires, descriptorToWire(d))
	}
	respondJSON(w, http.StatusOK, wires)
}

// UpdateTree handles PUT /v1/trees/{id}.
func (h *TreeHandlers) UpdateTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing tree id")
		return
	}

	var wire treeDescriptorWire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	d := wire.toDescriptor()
	if err := h.svc.UpdateTree(ctx, id, d); err != nil {
		respondError(w, http.StatusNotFound, "failed to update tree: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, descriptorToWire(d))
}

// RemoveTree handles DELETE /v1/trees/{id}.
func (h *TreeHandlers) RemoveTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing tree id")
		return
	}

	if err := h.svc.RemoveTree(ctx, id); err != nil {
		respondError(w, http.StatusNotFound, "failed to remove tree: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"id": id, "message": "tree removed"})
}
