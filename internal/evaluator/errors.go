// Package evaluator implements the Evaluator: the depth-first
// tree walk that applies a RuleTree to an incoming Product and produces a
// RuleTreeReport, via a Validate-style entry point, pre-flight checks, a
// recursive walk, and guaranteed cleanup.
package evaluator

import (
	"fmt"

	"github.com/ruletree/engine/pkg/catalog"
	"github.com/ruletree/engine/pkg/gate"

	"github.com/ruletree/engine/internal/source"
)

// MetadataError, PermissionError, and SourceError are re-exported here as
// aliases so internal/evaluator/errors.go is the one place callers look for
// the Evaluator's fatal error kinds, without duplicating the
// authoritative type each already has in its owning package (pkg/catalog,
// pkg/gate, internal/source).
type (
	MetadataError   = catalog.MetadataError
	PermissionError = gate.PermissionError
	SourceError     = source.SourceError
)

// InputError signals the incoming Product is missing a required key
// attribute value. Fatal to Validate.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error: %s", e.Reason)
}
