package api

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GateOwnerRequest is the request body for gate confirm/revoke/add-owner
// operations: which owner, and (for AddOwner) the owner's weight.
type GateOwnerRequest struct {
	OwnerID string `json:"owner_id"`
	Weight  uint32 `json:"weight,omitempty"`
}

// ConfirmGate handles POST /v1/gates/{id}/confirm: records the named
// owner's confirmation against treeID's Transaction-State Gate.
func (h *TreeHandlers) ConfirmGate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "ConfirmGate")
		defer span.End()
	}

	treeID := r.PathValue("id")
	if treeID == "" {
		respondError(w, http.StatusBadRequest, "missing tree id")
		return
	}

	var req GateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "missing owner_id")
		return
	}

	g := h.svc.GateFor(treeID)
	if err := g.Confirm(req.OwnerID); err != nil {
		respondError(w, http.StatusForbidden, "confirm failed: "+err.Error())
		return
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("tree.id", treeID), attribute.String("gate.owner", req.OwnerID))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tree_id":   treeID,
		"confirmed": g.IsConfirmed(),
		"score":     g.CurrentScore(),
	})
}

// RevokeGate handles POST /v1/gates/{id}/revoke.
func (h *TreeHandlers) RevokeGate(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("id")
	if treeID == "" {
		respondError(w, http.StatusBadRequest, "missing tree id")
		return
	}

	var req GateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	g := h.svc.GateFor(treeID)
	if err := g.Revoke(req.OwnerID); err != nil {
		respondError(w, http.StatusForbidden, "revoke failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tree_id":   treeID,
		"confirmed": g.IsConfirmed(),
		"score":     g.CurrentScore(),
	})
}

// AddGateOwner handles POST /v1/gates/{id}/owners.
func (h *TreeHandlers) AddGateOwner(w http.ResponseWriter, r *http.Request) {
	treeID := r.PathValue("id")
	if treeID == "" {
		respondError(w, http.StatusBadRequest, "missing tree id")
		return
	}

	var req GateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "missing owner_id")
		return
	}

	g := h.svc.GateFor(treeID)
	if err := g.AddOwner(req.OwnerID, req.Weight); err != nil {
		respondError(w, http.StatusConflict, "add owner failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"tree_id": treeID, "owner_id": req.OwnerID})
}
