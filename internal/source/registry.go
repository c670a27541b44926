// Package source implements the Source Registry: two maps from
// name to a caller-supplied value-producer, used to assemble the "current"
// record and to dispatch custom operators. AttributeSource and
// CustomOperatorSource are typed single-method interfaces, not bare func
// values.
package source

import "fmt"

// SourceError signals a caller-supplied retrieval or custom-operator
// callout failed. Fatal to Validate.
type SourceError struct {
	Name   string
	Reason string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source error: %s: %s", e.Name, e.Reason)
}

// AttributeSource produces the current value of one attribute, retrieved
// from wherever the caller's config points (endpoint/credentials owned by
// the caller, opaque to this package).
type AttributeSource interface {
	Retrieve(attrName string) (string, error)
}

// CustomOperatorSource invokes a named custom operator with up to four
// operand strings (stringified after operand resolution) and produces a
// result string, interpreted by the evaluator's custom operator semantics:
// "1"/"true" pass, "0"/"false" fail, anything else is a severe failure.
type CustomOperatorSource interface {
	Invoke(attrName string, args [4]string, argCount int) (string, error)
}

// Registry holds the Attribute Source Map and the Custom-Operator Source
// Map, kept separately.
type Registry struct {
	attributes map[string]AttributeSource
	operators  map[string]CustomOperatorSource
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		attributes: make(map[string]AttributeSource),
		operators:  make(map[string]CustomOperatorSource),
	}
}

// BindAttribute registers a Source for attribute-current-value assembly.
func (r *Registry) BindAttribute(attrName string, s AttributeSource) {
	r.attributes[attrName] = s
}

// BindCustomOperator registers a Source for a named custom operator.
func (r *Registry) BindCustomOperator(opName string, s CustomOperatorSource) {
	r.operators[opName] = s
}

// HasCustomOperator reports whether opName is bound, used by invariant
// checks.
func (r *Registry) HasCustomOperator(opName string) bool {
	_, ok := r.operators[opName]
	return ok
}

// ResolveAttribute invokes the bound AttributeSource for attrName.
func (r *Registry) ResolveAttribute(attrName string) (string, error) {
	s, ok := r.attributes[attrName]
	if !ok {
		return "", &SourceError{Name: attrName, Reason: "no attribute source bound"}
	}
	value, err := s.Retrieve(attrName)
	if err != nil {
		return "", &SourceError{Name: attrName, Reason: err.Error()}
	}
	return value, nil
}

// InvokeCustomOperator dispatches a custom-operator Rule to its bound
// Source, passing up to four stringified operands.
func (r *Registry) InvokeCustomOperator(opName, attrName string, args [4]string, argCount int) (string, error) {
	s, ok := r.operators[opName]
	if !ok {
		return "", &SourceError{Name: opName, Reason: "no custom-operator source bound"}
	}
	value, err := s.Invoke(attrName, args, argCount)
	if err != nil {
		return "", &SourceError{Name: opName, Reason: err.Error()}
	}
	return value, nil
}

// AttributeNames returns the bound attribute-source names, used to assemble
// the "current" Product.
func (r *Registry) AttributeNames() []string {
	names := make([]string, 0, len(r.attributes))
	for name := range r.attributes {
		names = append(names, name)
	}
	return names
}

// AttributeSourceFunc adapts a plain function to AttributeSource, for
// callers that would rather not declare a named type for a trivial
// retriever (e.g. tests, static-map based stubs).
type AttributeSourceFunc func(attrName string) (string, error)

func (f AttributeSourceFunc) Retrieve(attrName string) (string, error) { return f(attrName) }

// CustomOperatorSourceFunc adapts a plain function to CustomOperatorSource.
type CustomOperatorSourceFunc func(attrName string, args [4]string, argCount int) (string, error)

func (f CustomOperatorSourceFunc) Invoke(attrName string, args [4]string, argCount int) (string, error) {
	return f(attrName, args, argCount)
}
