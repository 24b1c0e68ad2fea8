package halo

import (
	"math"
	"sort"
)

// Index returns a new catalog holding the halos at idx, in idx order. Every
// computed column is indexed; metadata is copied. An empty idx yields an
// empty catalog whose computed columns are all zero-length.
func (c *Catalog) Index(idx []int) (*Catalog, error) {
	out := c.Copy()
	if err := out.IndexInPlace(idx); err != nil {
		return nil, err
	}
	return out, nil
}

// IndexInPlace replaces every computed column with its entries at idx. It is
// the primitive all other cuts are built from. The catalog is left untouched
// if validation fails.
func (c *Catalog) IndexInPlace(idx []int) error {
	if err := c.Validate(); err != nil {
		return err
	}
	n := c.N()
	for _, i := range idx {
		if i < 0 || i >= n {
			return &IndexError{Index: i, N: n}
		}
	}

	for _, col := range c.columns() {
		src := *col.ptr
		if src == nil {
			continue
		}
		dst := make([]float64, len(idx))
		for k, i := range idx {
			dst[k] = src[i]
		}
		*col.ptr = dst
	}
	return c.Validate()
}

// attrIndex returns the positions of halos with min < v <= max.
func (c *Catalog) attrIndex(name Column, min, max float64) ([]int, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	v, err := c.Column(name)
	if err != nil {
		return nil, err
	}
	keep := make([]int, 0, len(v))
	for i, x := range v {
		if x > min && x <= max {
			keep = append(keep, i)
		}
	}
	return keep, nil
}

// AttrCut returns a copy of the catalog keeping halos whose column value lies
// in the half-open interval (min, max]. NaN values are never kept.
func (c *Catalog) AttrCut(name Column, min, max float64) (*Catalog, error) {
	keep, err := c.attrIndex(name, min, max)
	if err != nil {
		return nil, err
	}
	return c.Index(keep)
}

// AttrCutInPlace is AttrCut applied to the catalog itself.
func (c *Catalog) AttrCutInPlace(name Column, min, max float64) error {
	keep, err := c.attrIndex(name, min, max)
	if err != nil {
		return err
	}
	return c.IndexInPlace(keep)
}

// MassCut returns a copy keeping halos with min < M <= max.
func (c *Catalog) MassCut(min, max float64) (*Catalog, error) {
	return c.AttrCut(ColM, min, max)
}

// MassCutInPlace keeps halos with min < M <= max.
func (c *Catalog) MassCutInPlace(min, max float64) error {
	return c.AttrCutInPlace(ColM, min, max)
}

// SortByMass reorders the catalog by non-increasing mass. The sort is
// stable, so halos of equal mass keep their relative order.
func (c *Catalog) SortByMass() error {
	idx := make([]int, c.N())
	for i := range idx {
		idx[i] = i
	}
	m := c.M
	sort.SliceStable(idx, func(a, b int) bool {
		return m[idx[a]] > m[idx[b]]
	})
	return c.IndexInPlace(idx)
}

// IsMassOrdered reports whether masses are in non-increasing order.
func (c *Catalog) IsMassOrdered() bool {
	for i := 1; i < len(c.M); i++ {
		if c.M[i] > c.M[i-1] || math.IsNaN(c.M[i]) {
			return false
		}
	}
	return true
}
