package models

// RuleTreeDescriptor is one entry in a Grove: a RuleTree plus the
// aggregated metadata a composition needs without walking the tree again.
type RuleTreeDescriptor struct {
	ID                string
	Tree              *RuleTree
	MinCost           int
	MaxCost           int
	RequiredAttrNames []string
}

// Grove is an ordered composition of RuleTree descriptors with aggregated
// cost and attribute metadata. Pure data container; it holds no
// evaluation behavior of its own.
type Grove struct {
	descriptors []RuleTreeDescriptor
}

// NewGrove returns an empty Grove.
func NewGrove() *Grove {
	return &Grove{}
}

// Add appends a descriptor.
func (g *Grove) Add(d RuleTreeDescriptor) {
	g.descriptors = append(g.descriptors, d)
}

// Len returns the number of descriptors in the grove.
func (g *Grove) Len() int {
	return len(g.descriptors)
}

// Descriptors returns the ordered descriptor list.
func (g *Grove) Descriptors() []RuleTreeDescriptor {
	return g.descriptors
}

// TotalMinCost sums MinCost across all descriptors.
func (g *Grove) TotalMinCost() int {
	total := 0
	for _, d := range g.descriptors {
		total += d.MinCost
	}
	return total
}

// TotalMaxCost sums MaxCost across all descriptors.
func (g *Grove) TotalMaxCost() int {
	total := 0
	for _, d := range g.descriptors {
		total += d.MaxCost
	}
	return total
}

// RequiredAttributes returns the union of required attribute names across
// all descriptors, in first-seen order.
func (g *Grove) RequiredAttributes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range g.descriptors {
		for _, name := range d.RequiredAttrNames {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
