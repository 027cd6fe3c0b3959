package analysis

import (
	"fmt"

	"statwizard/domain/core"
)

// Catalog is the ordered set of analyses the application offers.
type Catalog struct {
	order []*Definition
	byID  map[core.AnalysisID]*Definition
}

// NewCatalog validates and indexes definitions.
func NewCatalog(defs ...*Definition) (*Catalog, error) {
	c := &Catalog{byID: make(map[core.AnalysisID]*Definition, len(defs))}
	for _, d := range defs {
		if err := d.Check(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate analysis %s", d.ID)
		}
		c.byID[d.ID] = d
		c.order = append(c.order, d)
	}
	return c, nil
}

// DefaultCatalog returns the built-in analyses.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		linearRegression(),
		tTest(),
		autocorrelation(),
		controlChart(),
		monteCarlo(),
	)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the definitions in display order.
func (c *Catalog) All() []*Definition {
	return c.order
}

// Get looks up a definition.
func (c *Catalog) Get(id core.AnalysisID) (*Definition, error) {
	d, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAnalysisNotFound, id)
	}
	return d, nil
}
