package source

import (
	"github.com/ruletree/engine/pkg/catalog"
	"github.com/ruletree/engine/pkg/models"
)

// AssembleCurrent builds a Product by invoking every bound AttributeSource
// and writing its result into the Product under that attribute.
// Retrievals are independent; ordering is unspecified. A retrieval failure
// is surfaced as *SourceError and aborts Validate before the tree walk.
func (r *Registry) AssembleCurrent(cat *catalog.Catalog) (*models.Product, error) {
	product := models.NewProduct()
	for name, s := range r.attributes {
		attr, err := cat.GetByName(name)
		if err != nil {
			return nil, &SourceError{Name: name, Reason: err.Error()}
		}
		value, err := s.Retrieve(name)
		if err != nil {
			return nil, &SourceError{Name: name, Reason: err.Error()}
		}
		product.Set(attr, value)
	}
	return product, nil
}
