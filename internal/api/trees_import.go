package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/ruletree/engine/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// YAMLTreeFile is the structure of a bulk RuleTree import file: a list of
// tree descriptors in the same shape as the JSON wire format, encoded as
// YAML instead.
type YAMLTreeFile struct {
	Trees []YAMLTreeDescriptor `yaml:"trees"`
}

// YAMLTreeDescriptor is a single tree entry within a YAMLTreeFile.
type YAMLTreeDescriptor struct {
	ID                string          `yaml:"id"`
	Root              *models.RuleSet `yaml:"root"`
	MinCost           int             `yaml:"min_cost"`
	MaxCost           int             `yaml:"max_cost"`
	RequiredAttrNames []string        `yaml:"required_attr_names"`
}

// ImportTrees handles POST /v1/trees/import. Accepts a YAML document listing
// multiple RuleTreeDescriptors and registers each independently, so one
// malformed entry doesn't abort the rest of the batch.
func (h *TreeHandlers) ImportTrees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "ImportTrees")
		defer span.End()
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	var file YAMLTreeFile
	if err := yaml.Unmarshal(body, &file); err != nil {
		respondError(w, http.StatusBadRequest, "invalid YAML format: "+err.Error())
		return
	}
	if len(file.Trees) == 0 {
		respondError(w, http.StatusBadRequest, "no trees found in YAML document")
		return
	}

	results := ImportResults{
		Total:  len(file.Trees),
		Errors: make([]ImportError, 0),
	}

	for i, entry := range file.Trees {
		if entry.Root == nil {
			results.Failed++
			results.Errors = append(results.Errors, ImportError{Index: i, TreeID: entry.ID, Message: "missing required field: root"})
			continue
		}

		// Generate an id when the caller didn't supply one, rather than
		// rejecting the entry outright.
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}

		wire := treeDescriptorWire{
			ID:                entry.ID,
			Root:              entry.Root,
			MinCost:           entry.MinCost,
			MaxCost:           entry.MaxCost,
			RequiredAttrNames: entry.RequiredAttrNames,
		}
		d := wire.toDescriptor()
		if err := h.svc.RegisterTree(ctx, d); err != nil {
			results.Failed++
			results.Errors = append(results.Errors, ImportError{Index: i, TreeID: entry.ID, Message: fmt.Sprintf("failed to register tree: %v", err)})
			continue
		}

		results.Succeeded++
		results.Imported = append(results.Imported, entry.ID)
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.Int("import.total", results.Total),
			attribute.Int("import.succeeded", results.Succeeded),
			attribute.Int("import.failed", results.Failed),
		)
	}

	if results.Failed > 0 {
		respondJSON(w, http.StatusMultiStatus, results)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// ImportResults is the response from a bulk tree import.
type ImportResults struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Errors    []ImportError `json:"errors,omitempty"`
	Imported  []string      `json:"imported"`
}

// ImportError is a single import failure within a bulk request.
type ImportError struct {
	Index   int    `json:"index"`
	TreeID  string `json:"tree_id,omitempty"`
	Message string `json:"message"`
}
