// Package catalog implements the Attribute Catalog: a
// process-lifetime, read-only-after-init store of Attribute metadata used to
// resolve operands and keys. Unlike a typical CRUD store it has no
// Update/Delete — the Catalog is immutable once built.
package catalog

import (
	"fmt"

	"github.com/ruletree/engine/pkg/models"
)

// MetadataError signals attribute resolution or catalog-construction
// inconsistency.
type MetadataError struct {
	Reason string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata error: %s", e.Reason)
}

// MetadataSource is the caller-supplied metadata contract:
// produces the Attribute list on demand; key Attributes are those with
// IsKey set. Invoked at most once per Catalog construction.
type MetadataSource interface {
	Attributes() ([]models.Attribute, error)
}

// Catalog holds attribute metadata used to resolve operands and keys.
type Catalog struct {
	byName map[string]models.Attribute
	byID   map[string]models.Attribute
	keys   []models.Attribute
}

// New builds a Catalog from a MetadataSource. Fails with *MetadataError if
// two attributes share a name or id.
func New(source MetadataSource) (*Catalog, error) {
	attrs, err := source.Attributes()
	if err != nil {
		return nil, &MetadataError{Reason: fmt.Sprintf("loading attributes: %v", err)}
	}

	c := &Catalog{
		byName: make(map[string]models.Attribute, len(attrs)),
		byID:   make(map[string]models.Attribute, len(attrs)),
	}
	for _, a := range attrs {
		if _, exists := c.byName[a.Name]; exists {
			return nil, &MetadataError{Reason: fmt.Sprintf("duplicate attribute name %q", a.Name)}
		}
		if _, exists := c.byID[a.ID]; exists {
			return nil, &MetadataError{Reason: fmt.Sprintf("duplicate attribute id %q", a.ID)}
		}
		c.byName[a.Name] = a
		c.byID[a.ID] = a
		if a.IsKey {
			c.keys = append(c.keys, a)
		}
	}
	return c, nil
}

// GetByName resolves an attribute by its unique name. On a nil Catalog
// every name resolves to a string Attribute whose id is the name itself, in
// group "default".
func (c *Catalog) GetByName(name string) (models.Attribute, error) {
	if c == nil {
		return models.Attribute{ID: name, Name: name, GroupID: "default"}, nil
	}
	a, ok := c.byName[name]
	if !ok {
		return models.Attribute{}, &MetadataError{Reason: fmt.Sprintf("unknown attribute name %q", name)}
	}
	return a, nil
}

// GetByID resolves an attribute by its stable id.
func (c *Catalog) GetByID(id string) (models.Attribute, error) {
	a, ok := c.byID[id]
	if !ok {
		return models.Attribute{}, &MetadataError{Reason: fmt.Sprintf("unknown attribute id %q", id)}
	}
	return a, nil
}

// Keys returns the ordered list of key Attributes.
func (c *Catalog) Keys() []models.Attribute {
	out := make([]models.Attribute, len(c.keys))
	copy(out, c.keys)
	return out
}

// StaticMetadataSource is a MetadataSource backed by a fixed in-memory list,
// used by callers that load attribute metadata once at startup and never
// refresh it — the common case.
type StaticMetadataSource struct {
	attrs []models.Attribute
}

// NewStaticMetadataSource wraps a fixed attribute list.
func NewStaticMetadataSource(attrs []models.Attribute) *StaticMetadataSource {
	return &StaticMetadataSource{attrs: attrs}
}

func (s *StaticMetadataSource) Attributes() ([]models.Attribute, error) {
	return s.attrs, nil
}
