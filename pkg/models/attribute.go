package models

import "fmt"

// AttributeKind is the logical kind of an attribute's value.
type AttributeKind int

const (
	KindString AttributeKind = iota
	KindInteger
	KindDecimal
	KindDate
	KindEnum
)

func (k AttributeKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Attribute is immutable metadata describing one field of a Product.
type Attribute struct {
	ID        string
	Name      string
	GroupID   string
	Kind      AttributeKind
	MaxLength int // 0 means unbounded
	Nullable  bool
	IsKey     bool
}

// Truncate applies MaxLength to value, silently. Callers enforce stricter
// policy via Rules (populated/comparison operators see the truncated value).
func (a Attribute) Truncate(value string) string {
	if a.MaxLength <= 0 || len(value) <= a.MaxLength {
		return value
	}
	return value[:a.MaxLength]
}
