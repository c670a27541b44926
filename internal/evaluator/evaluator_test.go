package evaluator

import (
	"context"
	"testing"

	"github.com/ruletree/engine/pkg/catalog"
	"github.com/ruletree/engine/pkg/gate"
	"github.com/ruletree/engine/pkg/models"

	"github.com/ruletree/engine/internal/source"
)

func buildCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	attrs := []models.Attribute{
		{ID: "id", Name: "Id", GroupID: "header", Kind: models.KindString, IsKey: true},
		{ID: "age", Name: "Age", GroupID: "header", Kind: models.KindInteger},
		{ID: "country", Name: "Country", GroupID: "header", Kind: models.KindString},
		{ID: "price", Name: "Price", GroupID: "header", Kind: models.KindDecimal},
		{ID: "qty", Name: "Qty", GroupID: "header", Kind: models.KindDecimal},
		{ID: "total", Name: "Total", GroupID: "header", Kind: models.KindDecimal},
	}
	cat, err := catalog.New(catalog.NewStaticMetadataSource(attrs))
	if err != nil {
		t.Fatalf("unexpected catalog error: %v", err)
	}
	return cat
}

func mustSet(t *testing.T, cat *catalog.Catalog, p *models.Product, name, value string) {
	t.Helper()
	attr, err := cat.GetByName(name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Set(attr, value)
}

func ageRule(op models.CompareOp, value string) models.Rule {
	return models.Rule{
		ID: "age-rule", TargetAttrName: "Age",
		Operator: models.Operator{Tag: models.OpCompare, CompareOp: op, RHS: models.LiteralOperand(value)},
	}
}

func TestValidate_SingleRuleSetPass(t *testing.T) {
	cat := buildCatalog(t)
	root := &models.RuleSet{ID: "root", Mode: models.ModeAND, Rules: []models.Rule{ageRule(models.CmpGreaterEqual, "18")}}
	tree := models.NewRuleTree(root)

	incoming := models.NewProduct()
	mustSet(t, cat, incoming, "Id", "p1")
	mustSet(t, cat, incoming, "Age", "30")

	eval := New("test-tree", tree).WithCatalog(cat)
	report, err := eval.Validate(context.Background(), incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Passed() {
		t.Fatalf("expected pass, got %+v", report)
	}
	if report.RulesEvaluated != 1 || report.RuleSetsEvaluated != 1 {
		t.Fatalf("unexpected counters: %+v", report)
	}
	if report.OverallSeverity != models.OverallClean {
		t.Fatalf("expected clean severity, got %v", report.OverallSeverity)
	}
}

func TestValidate_MissingKeyIsInputError(t *testing.T) {
	cat := buildCatalog(t)
	root := &models.RuleSet{ID: "root", Mode: models.ModeAND, Rules: []models.Rule{ageRule(models.CmpGreaterEqual, "18")}}
	tree := models.NewRuleTree(root)

	incoming := models.NewProduct()
	mustSet(t, cat, incoming, "Age", "30") // no Id

	eval := New("test-tree", tree).WithCatalog(cat)
	_, err := eval.Validate(context.Background(), incoming)
	if _, ok := err.(*InputError); !ok {
		t.Fatalf("expected *InputError, got %v", err)
	}
}

func TestValidate_GateRejection(t *testing.T) {
	cat := buildCatalog(t)
	root := &models.RuleSet{ID: "root", Mode: models.ModeAND, Rules: []models.Rule{ageRule(models.CmpGreaterEqual, "18")}}
	tree := models.NewRuleTree(root)

	g := gate.New()
	g.AddOwner("a", 1)
	g.AddOwner("b", 1)
	g.AddOwner("c", 1)
	g.SetMinScore(2)
	g.Confirm("a")

	incoming := models.NewProduct()
	mustSet(t, cat, incoming, "Id", "p1")
	mustSet(t, cat, incoming, "Age", "30")

	eval := New("test-tree", tree).WithCatalog(cat).WithGate(g)
	_, err := eval.Validate(context.Background(), incoming)
	if _, ok := err.(*PermissionError); !ok {
		t.Fatalf("expected *PermissionError, got %v", err)
	}

	confirmed, ownerErr := g.OwnerConfirmed("a")
	if ownerErr != nil {
		t.Fatalf("unexpected error: %v", ownerErr)
	}
	if confirmed {
		t.Fatalf("expected gate cleared after rejected validate")
	}
}

func TestValidate_GateClearedAfterSuccess(t *testing.T) {
	cat := buildCatalog(t)
	root := &models.RuleSet{ID: "root", Mode: models.ModeAND, Rules: []models.Rule{ageRule(models.CmpGreaterEqual, "18")}}
	tree := models.NewRuleTree(root)

	g := gate.New()
	g.AddOwner("a", 1)
	g.Confirm("a")

	incoming := models.NewProduct()
	mustSet(t, cat, incoming, "Id", "p1")
	mustSet(t, cat, incoming, "Age", "30")

	eval := New("test-tree", tree).WithCatalog(cat).WithGate(g)
	report, err := eval.Validate(context.Background(), incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Passed() {
		t.Fatalf("expected pass")
	}
	confirmed, _ := g.OwnerConfirmed("a")
	if confirmed {
		t.Fatalf("expected gate cleared after successful validate")
	}
}

func TestValidate_HaltSiblings(t *testing.T) {
	cat := buildCatalog(t)
	c1 := &models.RuleSet{ID: "c1", Mode: models.ModeAND, Rules: []models.Rule{ageRule(models.CmpGreaterEqual, "0")}}
	c2 := &models.RuleSet{
		ID: "c2", Mode: models.ModeAND,
		Rules:     []models.Rule{ageRule(models.CmpGreaterEqual, "999")},
		OnFailure: models.FailureAction{Kind: models.FailureHaltSiblings},
	}
	c3 := &models.RuleSet{ID: "c3", Mode: models.ModeAND, Rules: []models.Rule{ageRule(models.CmpGreaterEqual, "0")}}
	root := &models.RuleSet{ID: "root", Mode: models.ModeAND, Children: []*models.RuleSet{c1, c2, c3}}
	tree := models.NewRuleTree(root)

	incoming := models.NewProduct()
	mustSet(t, cat, incoming, "Id", "p1")
	mustSet(t, cat, incoming, "Age", "30")

	eval := New("test-tree", tree).WithCatalog(cat)
	report, err := eval.Validate(context.Background(), incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var visited []string
	for _, r := range report.RuleSets {
		visited = append(visited, r.RuleSetID)
	}
	for _, id := range visited {
		if id == "c3" {
			t.Fatalf("expected c3 to be skipped after c2's halt-siblings, visited=%v", visited)
		}
	}
	if report.Passed() {
		t.Fatalf("expected root to fail since c2 failed")
	}
}

func TestValidate_MutationVisibleToLaterRules(t *testing.T) {
	cat := buildCatalog(t)
	arithRule := models.Rule{
		ID: "compute-total", TargetAttrName: "Total",
		Operator: models.Operator{
			Tag: models.OpArith, TargetAttribute: "Total",
			Terms: []models.ArithTerm{
				{Op: models.ArithNone, Operand: models.AttributeOperand("Price")},
				{Op: models.ArithMul, Operand: models.AttributeOperand("Qty")},
			},
		},
	}
	checkRule := models.Rule{
		ID: "check-total", TargetAttrName: "Total",
		Operator: models.Operator{Tag: models.OpCompare, CompareOp: models.CmpLessEqual, RHS: models.LiteralOperand("100")},
	}
	root := &models.RuleSet{ID: "root", Mode: models.ModeAND, Rules: []models.Rule{arithRule, checkRule}}
	tree := models.NewRuleTree(root)

	incoming := models.NewProduct()
	mustSet(t, cat, incoming, "Id", "p1")
	mustSet(t, cat, incoming, "Price", "20")
	mustSet(t, cat, incoming, "Qty", "4")

	eval := New("test-tree", tree).WithCatalog(cat)
	report, err := eval.Validate(context.Background(), incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Passed() {
		t.Fatalf("expected pass since Total=80 <= 100, got %+v", report)
	}
}

func TestValidate_SevereFailurePropagatesOverallSeverity(t *testing.T) {
	cat := buildCatalog(t)
	root := &models.RuleSet{
		ID: "root", Mode: models.ModeAND, Severity: models.SeverityWarning,
		Rules: []models.Rule{ageRule(models.CmpGreaterEqual, "not-a-number")},
	}
	tree := models.NewRuleTree(root)

	incoming := models.NewProduct()
	mustSet(t, cat, incoming, "Id", "p1")
	mustSet(t, cat, incoming, "Age", "30")

	eval := New("test-tree", tree).WithCatalog(cat)
	report, err := eval.Validate(context.Background(), incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OverallSeverity != models.OverallSevere {
		t.Fatalf("expected severe overall severity from severe rule failure, got %v", report.OverallSeverity)
	}
}

func TestValidate_CurrentRecordFromRetrieverAndSourceAssembly(t *testing.T) {
	cat := buildCatalog(t)
	root := &models.RuleSet{
		ID: "root", Mode: models.ModeAND,
		Rules: []models.Rule{{
			ID: "current-check", TargetAttrName: "Age", Target: models.SelectorCurrent,
			Operator: models.Operator{Tag: models.OpCompare, CompareOp: models.CmpEqual, RHS: models.LiteralOperand("21")},
		}},
	}
	tree := models.NewRuleTree(root)

	retriever := RecordRetrieverFunc(func(keys map[string]string) (*models.Product, error) {
		current := models.NewProduct()
		attr, _ := cat.GetByName("Age")
		current.Set(attr, "21")
		return current, nil
	})

	incoming := models.NewProduct()
	mustSet(t, cat, incoming, "Id", "p1")

	eval := New("test-tree", tree).WithCatalog(cat).WithSources(source.New()).WithRecordRetriever(retriever)
	report, err := eval.Validate(context.Background(), incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Passed() {
		t.Fatalf("expected pass against retrieved CURRENT.Age=21, got %+v", report)
	}
}

func TestValidate_ORModeAtLeastOnePasses(t *testing.T) {
	cat := buildCatalog(t)
	root := &models.RuleSet{
		ID: "root", Mode: models.ModeOR,
		Rules: []models.Rule{
			ageRule(models.CmpGreaterEqual, "999"),
			ageRule(models.CmpGreaterEqual, "18"),
		},
	}
	tree := models.NewRuleTree(root)

	incoming := models.NewProduct()
	mustSet(t, cat, incoming, "Id", "p1")
	mustSet(t, cat, incoming, "Age", "30")

	eval := New("test-tree", tree).WithCatalog(cat)
	report, err := eval.Validate(context.Background(), incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Passed() {
		t.Fatalf("expected OR RuleSet to pass when one rule passes, got %+v", report)
	}
}

func TestValidate_NoTreeReturnsCleanReport(t *testing.T) {
	eval := New("test-tree", models.NewRuleTree(nil))
	report, err := eval.Validate(context.Background(), models.NewProduct())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OverallSeverity != models.OverallClean {
		t.Fatalf("expected clean report for nil root, got %v", report.OverallSeverity)
	}
}
