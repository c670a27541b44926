// Package simulation is the property-based test harness for the RuleTree
// evaluation engine: random RuleTrees and Products are generated from a
// DeterministicRand seed and walked through a real Evaluator, with the
// resulting RuleTreeReport/Gate state checked against the invariants in
// invariants.go. There is no separate Simulator type — generators build the
// engine's own domain types directly, and faults.go injects failures
// through the engine's own RecordRetriever contract rather than a
// simulator-internal fault table.
package simulation

import (
	"fmt"

	"github.com/ruletree/engine/pkg/fsm"
	"github.com/ruletree/engine/pkg/models"
)

// TreeShape bounds a generated RuleTree so fuzz runs terminate and stay
// well within the depth/fan-out limits declared in internal/config's
// RuleTreeLimits.
type TreeShape struct {
	MaxDepth    int
	MaxChildren int
	MaxRules    int
}

// DefaultShape mirrors internal/config's default RuleTreeLimits, scaled
// down so a single fuzz iteration stays cheap.
var DefaultShape = TreeShape{MaxDepth: 4, MaxChildren: 3, MaxRules: 4}

// GenerateRuleTree builds a random RuleTree of at most shape's bounds, using
// rnd for every random choice so a given seed always reproduces the same
// tree.
func GenerateRuleTree(rnd *fsm.DeterministicRand, shape TreeShape) *models.RuleTree {
	root := generateRuleSet(rnd, shape, 0, "root")
	return models.NewRuleTree(root)
}

func generateRuleSet(rnd *fsm.DeterministicRand, shape TreeShape, depth int, id string) *models.RuleSet {
	set := &models.RuleSet{
		ID:   id,
		Mode: pickMode(rnd),
	}
	if rnd.Bool() {
		set.Severity = models.SeveritySevere
	}

	numRules := rnd.Intn(shape.MaxRules + 1)
	for i := 0; i < numRules; i++ {
		set.Rules = append(set.Rules, generateRule(rnd, fmt.Sprintf("%s-rule-%d", id, i)))
	}

	if depth < shape.MaxDepth {
		numChildren := rnd.Intn(shape.MaxChildren + 1)
		for i := 0; i < numChildren; i++ {
			child := generateRuleSet(rnd, shape, depth+1, fmt.Sprintf("%s-child-%d", id, i))
			set.Children = append(set.Children, child)
		}
	}

	return set
}

func pickMode(rnd *fsm.DeterministicRand) models.Mode {
	if rnd.Bool() {
		return models.ModeOR
	}
	return models.ModeAND
}

// generateRule produces a Rule exercising one of the comparison operators
// against a small fixed attribute/value space, so generated Products can
// plausibly satisfy or violate it.
func generateRule(rnd *fsm.DeterministicRand, id string) models.Rule {
	attrNames := []string{"Age", "Score", "Status"}
	attrName := attrNames[rnd.Intn(len(attrNames))]

	cmp := models.CompareOp(rnd.Intn(6))
	rhs := models.LiteralOperand(fmt.Sprintf("%d", rnd.Intn(100)))

	return models.Rule{
		ID:             id,
		TargetAttrName: attrName,
		Target:         models.SelectorNew,
		Operator: models.Operator{
			Tag:       models.OpCompare,
			CompareOp: cmp,
			RHS:       rhs,
		},
	}
}

// GenerateProduct builds a Product carrying a random row for each of the
// attribute names GenerateRuleTree's rules might reference, so evaluation
// actually exercises both pass and fail branches across runs.
func GenerateProduct(rnd *fsm.DeterministicRand) *models.Product {
	p := models.NewProduct()
	p.SetRow("default", 0, "Age", fmt.Sprintf("%d", rnd.Intn(100)))
	p.SetRow("default", 0, "Score", fmt.Sprintf("%d", rnd.Intn(100)))
	p.SetRow("default", 0, "Status", []string{"active", "inactive"}[rnd.Intn(2)])
	return p
}
