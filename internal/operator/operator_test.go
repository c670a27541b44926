package operator

import (
	"testing"

	"github.com/ruletree/engine/pkg/catalog"
	"github.com/ruletree/engine/pkg/models"

	"github.com/ruletree/engine/internal/source"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	attrs := []models.Attribute{
		{ID: "name", Name: "Name", GroupID: "header", Kind: models.KindString},
		{ID: "age", Name: "Age", GroupID: "header", Kind: models.KindInteger},
		{ID: "country", Name: "Country", GroupID: "header", Kind: models.KindString},
		{ID: "price", Name: "Price", GroupID: "header", Kind: models.KindDecimal},
		{ID: "qty", Name: "Qty", GroupID: "header", Kind: models.KindDecimal},
		{ID: "total", Name: "Total", GroupID: "header", Kind: models.KindDecimal},
		{ID: "signup", Name: "SignupDate", GroupID: "header", Kind: models.KindDate},
	}
	cat, err := catalog.New(catalog.NewStaticMetadataSource(attrs))
	if err != nil {
		t.Fatalf("unexpected catalog error: %v", err)
	}
	return cat
}

func newCtx(t *testing.T) (Context, *models.Product) {
	t.Helper()
	cat := testCatalog(t)
	newProduct := models.NewProduct()
	return Context{
		New:     newProduct,
		Current: models.NewProduct(),
		Target:  models.SelectorNew,
		Catalog: cat,
		Sources: source.New(),
	}, newProduct
}

func setAttr(t *testing.T, ctx Context, name, value string) {
	t.Helper()
	attr, err := ctx.Catalog.GetByName(name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx.New.Set(attr, value)
}

func TestEvalPopulated(t *testing.T) {
	ctx, _ := newCtx(t)
	setAttr(t, ctx, "Name", "Ada")

	rule := models.Rule{ID: "r1", TargetAttrName: "Name", Operator: models.Operator{Tag: models.OpPopulated}}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil || !out.Passed {
		t.Fatalf("expected pass, got %+v err=%v", out, err)
	}

	setAttr(t, ctx, "Name", "")
	out, err = Evaluate(ctx, "s1", rule)
	if err != nil || out.Passed {
		t.Fatalf("expected fail for empty name, got %+v err=%v", out, err)
	}
	if out.Failure == nil || out.Failure.TargetAttrName != "Name" {
		t.Fatalf("expected failure record for Name, got %+v", out.Failure)
	}
}

func TestEvalCompare_NumericScenario1(t *testing.T) {
	ctx, _ := newCtx(t)
	setAttr(t, ctx, "Age", "30")

	rule := models.Rule{
		ID: "r2", TargetAttrName: "Age",
		Operator: models.Operator{Tag: models.OpCompare, CompareOp: models.CmpGreaterEqual, RHS: models.LiteralOperand("18")},
	}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil || !out.Passed {
		t.Fatalf("expected Age >= 18 to pass, got %+v err=%v", out, err)
	}
}

func TestEvalCompare_NonNumericIsSevere(t *testing.T) {
	ctx, _ := newCtx(t)
	setAttr(t, ctx, "Age", "not-a-number")

	rule := models.Rule{
		ID: "r2", TargetAttrName: "Age",
		Operator: models.Operator{Tag: models.OpCompare, CompareOp: models.CmpGreaterEqual, RHS: models.LiteralOperand("18")},
	}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Passed || out.Failure == nil || out.Failure.Severity != models.SeveritySevere {
		t.Fatalf("expected severe failure for non-numeric compare, got %+v", out)
	}
}

func TestEvalCompare_LexicalDateOperator(t *testing.T) {
	ctx, _ := newCtx(t)
	setAttr(t, ctx, "SignupDate", "20240102")

	rule := models.Rule{
		ID: "r3", TargetAttrName: "SignupDate",
		Operator: models.Operator{Tag: models.OpCompare, CompareOp: models.CmpLess, RHS: models.LiteralOperand("20240103")},
	}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil || !out.Passed {
		t.Fatalf("expected date comparison to pass, got %+v err=%v", out, err)
	}
}

func TestEvalInSet_ORCombinationScenario2(t *testing.T) {
	ctx, _ := newCtx(t)
	setAttr(t, ctx, "Country", "CA")

	rule := models.Rule{
		ID: "r4", TargetAttrName: "Country",
		Operator: models.Operator{Tag: models.OpInSet, Set: []models.Operand{models.LiteralOperand("US"), models.LiteralOperand("CA")}},
	}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil || !out.Passed {
		t.Fatalf("expected CA to be in set, got %+v err=%v", out, err)
	}

	setAttr(t, ctx, "Country", "MX")
	out, err = Evaluate(ctx, "s1", rule)
	if err != nil || out.Passed {
		t.Fatalf("expected MX to fail set membership, got %+v err=%v", out, err)
	}
	if out.Failure.TargetAttrName != "Country" {
		t.Fatalf("expected failure attribute Country, got %+v", out.Failure)
	}
}

func TestEvalRange(t *testing.T) {
	ctx, _ := newCtx(t)
	setAttr(t, ctx, "Age", "25")

	rule := models.Rule{
		ID: "r5", TargetAttrName: "Age",
		Operator: models.Operator{Tag: models.OpRange, Low: models.LiteralOperand("18"), High: models.LiteralOperand("65")},
	}
	out, _ := Evaluate(ctx, "s1", rule)
	if !out.Passed {
		t.Fatalf("expected 25 in [18,65] to pass")
	}
}

func TestEvalRange_InvertedBoundsFails(t *testing.T) {
	ctx, _ := newCtx(t)
	setAttr(t, ctx, "Age", "25")

	rule := models.Rule{
		ID: "r5", TargetAttrName: "Age",
		Operator: models.Operator{Tag: models.OpRange, Low: models.LiteralOperand("65"), High: models.LiteralOperand("18")},
	}
	out, _ := Evaluate(ctx, "s1", rule)
	if out.Passed {
		t.Fatalf("expected inverted range [65,18] to fail")
	}
}

func TestEvalArith_AssignmentScenario3Pass(t *testing.T) {
	ctx, newProduct := newCtx(t)
	setAttr(t, ctx, "Price", "20")
	setAttr(t, ctx, "Qty", "4")

	rule := models.Rule{
		ID: "r6", TargetAttrName: "Total",
		Operator: models.Operator{
			Tag:             models.OpArith,
			TargetAttribute: "Total",
			Terms: []models.ArithTerm{
				{Op: models.ArithNone, Operand: models.AttributeOperand("Price")},
				{Op: models.ArithMul, Operand: models.AttributeOperand("Qty")},
			},
		},
	}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil || !out.Passed {
		t.Fatalf("arithmetic assignment should always pass, got %+v err=%v", out, err)
	}
	got, ok := newProduct.Get("header", 0, "total")
	if !ok || got != "80" {
		t.Fatalf("expected Total=80, got %q ok=%v", got, ok)
	}

	checkRule := models.Rule{
		ID: "r7", TargetAttrName: "Total",
		Operator: models.Operator{Tag: models.OpCompare, CompareOp: models.CmpLessEqual, RHS: models.LiteralOperand("100")},
	}
	checkOut, _ := Evaluate(ctx, "s1", checkRule)
	if !checkOut.Passed {
		t.Fatalf("expected Total<=100 to pass after mutation, got %+v", checkOut)
	}
}

func TestEvalArith_Scenario3Fail(t *testing.T) {
	ctx, newProduct := newCtx(t)
	setAttr(t, ctx, "Price", "20")
	setAttr(t, ctx, "Qty", "6")

	arithRule := models.Rule{
		ID: "r6", TargetAttrName: "Total",
		Operator: models.Operator{
			Tag:             models.OpArith,
			TargetAttribute: "Total",
			Terms: []models.ArithTerm{
				{Op: models.ArithNone, Operand: models.AttributeOperand("Price")},
				{Op: models.ArithMul, Operand: models.AttributeOperand("Qty")},
			},
		},
	}
	Evaluate(ctx, "s1", arithRule)
	got, _ := newProduct.Get("header", 0, "total")
	if got != "120" {
		t.Fatalf("expected Total=120, got %q", got)
	}

	checkRule := models.Rule{
		ID: "r7", TargetAttrName: "Total",
		Operator: models.Operator{Tag: models.OpCompare, CompareOp: models.CmpLessEqual, RHS: models.LiteralOperand("100")},
	}
	checkOut, _ := Evaluate(ctx, "s1", checkRule)
	if checkOut.Passed {
		t.Fatalf("expected Total<=100 to fail when Total=120")
	}
}

func TestEvalArith_DivisionByZeroIsSevere(t *testing.T) {
	ctx, _ := newCtx(t)
	setAttr(t, ctx, "Price", "10")

	rule := models.Rule{
		ID: "r8", TargetAttrName: "Total",
		Operator: models.Operator{
			Tag:             models.OpArith,
			TargetAttribute: "Total",
			Terms: []models.ArithTerm{
				{Op: models.ArithNone, Operand: models.AttributeOperand("Price")},
				{Op: models.ArithDiv, Operand: models.LiteralOperand("0")},
			},
		},
	}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Passed {
		t.Fatalf("expected division by zero to fail the rule")
	}
	if out.Failure == nil || out.Failure.Severity != models.SeveritySevere {
		t.Fatalf("expected severe failure, got %+v", out.Failure)
	}
}

func TestEvalAssign(t *testing.T) {
	ctx, newProduct := newCtx(t)

	rule := models.Rule{
		ID: "r9", TargetAttrName: "Country",
		Operator: models.Operator{Tag: models.OpAssign, AssignValue: models.LiteralOperand("US")},
	}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil || !out.Passed {
		t.Fatalf("assign should always pass, got %+v err=%v", out, err)
	}
	got, ok := newProduct.Get("header", 0, "country")
	if !ok || got != "US" {
		t.Fatalf("expected Country=US, got %q ok=%v", got, ok)
	}
}

func TestEvalCustom_Scenario6(t *testing.T) {
	ctx, _ := newCtx(t)
	ctx.Sources.BindCustomOperator("LookupActive", source.CustomOperatorSourceFunc(func(attrName string, args [4]string, argCount int) (string, error) {
		if argCount == 1 && args[0] == "42" {
			return "true", nil
		}
		return "maybe", nil
	}))

	rule := models.Rule{
		ID: "r10", TargetAttrName: "Id",
		Operator: models.Operator{Tag: models.OpCustom, CustomOpName: "LookupActive", CustomArgs: [4]models.Operand{models.LiteralOperand("42")}, CustomArgN: 1},
	}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil || !out.Passed {
		t.Fatalf("expected LookupActive(42) to pass, got %+v err=%v", out, err)
	}

	rule.Operator.CustomArgs[0] = models.LiteralOperand("7")
	out, err = Evaluate(ctx, "s1", rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Passed || out.Failure.Severity != models.SeveritySevere {
		t.Fatalf("expected severe failure for non-boolean custom result, got %+v", out)
	}
}

func TestEvalPopulated_Negated(t *testing.T) {
	ctx, _ := newCtx(t)
	setAttr(t, ctx, "Name", "")

	rule := models.Rule{ID: "r11", TargetAttrName: "Name", Negated: true, Operator: models.Operator{Tag: models.OpPopulated}}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil || !out.Passed {
		t.Fatalf("expected negated 'not populated' on empty Name to pass, got %+v err=%v", out, err)
	}
}

func TestEvalCompare_TargetCurrent(t *testing.T) {
	cat := testCatalog(t)
	current := models.NewProduct()
	attr, _ := cat.GetByName("Age")
	current.Set(attr, "21")

	ctx := Context{
		New:     models.NewProduct(),
		Current: current,
		Target:  models.SelectorCurrent,
		Catalog: cat,
		Sources: source.New(),
	}

	rule := models.Rule{
		ID: "r12", TargetAttrName: "Age", Target: models.SelectorCurrent,
		Operator: models.Operator{Tag: models.OpCompare, CompareOp: models.CmpEqual, RHS: models.LiteralOperand("21")},
	}
	out, err := Evaluate(ctx, "s1", rule)
	if err != nil || !out.Passed {
		t.Fatalf("expected CURRENT.Age == 21 to pass, got %+v err=%v", out, err)
	}
}
