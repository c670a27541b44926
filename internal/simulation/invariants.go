package simulation

import (
	"fmt"

	"github.com/ruletree/engine/pkg/gate"
	"github.com/ruletree/engine/pkg/models"
)

// CompletenessInvariant checks that every RuleSet in the
// tree produced exactly one RuleSetReport: RuleSetsEvaluated and
// len(RuleSets) both equal the tree's RuleSet count. RulesEvaluated is not
// checked.
func CompletenessInvariant(tree *models.RuleTree, report *models.RuleTreeReport) error {
	want := countRuleSets(tree.Root)
	if report.RuleSetsEvaluated != want {
		return fmt.Errorf("completeness: expected %d RuleSets evaluated, got %d", want, report.RuleSetsEvaluated)
	}
	if len(report.RuleSets) != want {
		return fmt.Errorf("completeness: expected %d RuleSetReports, got %d", want, len(report.RuleSets))
	}
	return nil
}

func countRuleSets(set *models.RuleSet) int {
	if set == nil {
		return 0
	}
	n := 1
	for _, c := range set.Children {
		n += countRuleSets(c)
	}
	return n
}

// DeterminismInvariant checks that two Validate calls
// against the same tree and an identical incoming Product (no Sources, no
// faults) produce the same overall verdict and severity.
func DeterminismInvariant(a, b *models.RuleTreeReport) error {
	if a.Passed() != b.Passed() {
		return fmt.Errorf("determinism: Passed() differs: %v vs %v", a.Passed(), b.Passed())
	}
	if a.OverallSeverity != b.OverallSeverity {
		return fmt.Errorf("determinism: OverallSeverity differs: %v vs %v", a.OverallSeverity, b.OverallSeverity)
	}
	if a.RulesEvaluated != b.RulesEvaluated || a.RuleSetsEvaluated != b.RuleSetsEvaluated {
		return fmt.Errorf("determinism: evaluation counts differ: (%d,%d) vs (%d,%d)",
			a.RulesEvaluated, a.RuleSetsEvaluated, b.RulesEvaluated, b.RuleSetsEvaluated)
	}
	return nil
}

// SeverityMonotonicityInvariant checks that the
// overall severity is never weaker than any individual RuleSetReport's
// severity among its failures.
func SeverityMonotonicityInvariant(report *models.RuleTreeReport) error {
	for _, set := range report.RuleSets {
		if set.Passed {
			continue
		}
		if set.Severity == models.SeveritySevere && report.OverallSeverity != models.OverallSevere {
			return fmt.Errorf("severity monotonicity: RuleSet %s is severe but overall is %s", set.RuleSetID, report.OverallSeverity)
		}
		for _, f := range set.Failures {
			if f.Severity == models.SeveritySevere && report.OverallSeverity != models.OverallSevere {
				return fmt.Errorf("severity monotonicity: failure %s/%s is severe but overall is %s", f.RuleSetID, f.RuleID, report.OverallSeverity)
			}
		}
	}
	return nil
}

// GateClearInvariant checks that after Validate returns,
// success or error, every owner on g is unconfirmed (the Evaluator's
// post-flight RevokeAll ran unconditionally).
func GateClearInvariant(g *gate.Gate) error {
	for _, id := range g.Owners() {
		confirmed, err := g.OwnerConfirmed(id)
		if err != nil {
			return fmt.Errorf("gate clear: %w", err)
		}
		if confirmed {
			return fmt.Errorf("gate clear: owner %q still confirmed after Validate", id)
		}
	}
	return nil
}

// QuorumInvariant checks that IsConfirmed iff the summed
// confirmed weight (as of the snapshot taken before RevokeAll fired) met
// g's min-score threshold. Callers must capture scoreBeforeClear and
// minScore before the Validate call that triggers RevokeAll.
func QuorumInvariant(scoreBeforeClear, minScore uint32, wasConfirmed bool) error {
	shouldBeConfirmed := scoreBeforeClear >= minScore
	if shouldBeConfirmed != wasConfirmed {
		return fmt.Errorf("quorum: score %d vs min %d implies confirmed=%v, but evaluator observed %v",
			scoreBeforeClear, minScore, shouldBeConfirmed, wasConfirmed)
	}
	return nil
}
