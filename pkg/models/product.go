package models

// Row maps attr_id to a string value within a single group row.
type Row map[string]string

// Product is a mapping group_id -> ordered list of rows. All values are
// carried as strings; numeric/date semantics live in Rules that consume
// them. Product is mutable during a single evaluation.
type Product struct {
	groups map[string][]Row
}

// NewProduct returns an empty Product.
func NewProduct() *Product {
	return &Product{groups: make(map[string][]Row)}
}

// Set writes into row 0 of attr's group, creating the group and row 0 on
// demand. The value is truncated at attr.MaxLength if present; truncation
// is silent.
func (p *Product) Set(attr Attribute, value string) {
	value = attr.Truncate(value)
	rows, ok := p.groups[attr.GroupID]
	if !ok || len(rows) == 0 {
		rows = []Row{make(Row)}
	}
	rows[0][attr.ID] = value
	p.groups[attr.GroupID] = rows
}

// SetRow writes attrID's value into a specific row of group, growing the
// group with empty rows as needed. Duplicate (group, row, attr) writes
// overwrite.
func (p *Product) SetRow(groupID string, row int, attrID, value string) {
	rows := p.groups[groupID]
	for len(rows) <= row {
		rows = append(rows, make(Row))
	}
	rows[row][attrID] = value
	p.groups[groupID] = rows
}

// Get reads attr from a specific (group, row). Returns "", false if the
// group, row, or attribute is absent.
func (p *Product) Get(groupID string, row int, attrID string) (string, bool) {
	rows, ok := p.groups[groupID]
	if !ok || row < 0 || row >= len(rows) {
		return "", false
	}
	value, ok := rows[row][attrID]
	return value, ok
}

// Group returns the ordered list of rows for a group id. Returns nil if the
// group does not exist.
func (p *Product) Group(groupID string) []Row {
	return p.groups[groupID]
}

// RowCount returns the number of rows in a group.
func (p *Product) RowCount(groupID string) int {
	return len(p.groups[groupID])
}

// HasNonEmptyKeyValue reports whether row 0 of the key attribute's group
// carries a non-empty value, used by the evaluator's key-extraction
// pre-flight.
func (p *Product) HasNonEmptyKeyValue(attr Attribute) bool {
	value, ok := p.Get(attr.GroupID, 0, attr.ID)
	return ok && value != ""
}
