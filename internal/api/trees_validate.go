package api

import (
	"encoding/json"
	"net/http"

	"github.com/ruletree/engine/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// productWire is the JSON wire shape for a models.Product: group id ->
// ordered rows of attr_id -> value. models.Product keeps its internal map
// unexported, so the wire format is rebuilt into one via SetRow.
type productWire struct {
	Groups map[string][]models.Row `json:"groups"`
}

func (w productWire) toProduct() *models.Product {
	p := models.NewProduct()
	for groupID, rows := range w.Groups {
		for i, row := range rows {
			for attrID, value := range row {
				p.SetRow(groupID, i, attrID, value)
			}
		}
	}
	return p
}

// ValidateTreeRequest is the request body for POST /v1/trees/{id}/validate.
type ValidateTreeRequest struct {
	Incoming productWire `json:"incoming"`
}

// ValidateTree handles POST /v1/trees/{id}/validate: runs the named
// RuleTree's Evaluator against the posted incoming Product and returns the
// resulting RuleTreeReport.
func (h *TreeHandlers) ValidateTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "ValidateTree")
		defer span.End()
	}

	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing tree id")
		return
	}

	var req ValidateTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := h.svc.Validate(ctx, id, req.Incoming.toProduct())
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "validate failed: "+err.Error())
		return
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.String("tree.id", id),
			attribute.String("report.severity", report.OverallSeverity.String()),
			attribute.Bool("report.passed", report.Passed()),
		)
	}

	respondJSON(w, http.StatusOK, report)
}
