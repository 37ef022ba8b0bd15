// Package taxonomy defines catalog entries and the structural equality rules
// used when comparing them across revisions.
package taxonomy

import (
	"sort"
)

// Quantity names a physical quantity in the units registry.
type Quantity struct {
	Name string `json:"name"`
}

// MLayer maps a quantity onto the external M-Layer registry.
type MLayer struct {
	Aspect string `json:"aspect"`
	ID     string `json:"id"`
}

// CategoryTag is a name/value classification attached to a reference.
type CategoryTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ReferenceURL links an entry to an external document.
type ReferenceURL struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Reference is one external reference. Either field may be absent.
type Reference struct {
	CategoryTag  *CategoryTag  `json:"categoryTag,omitempty"`
	ReferenceURL *ReferenceURL `json:"referenceUrl,omitempty"`
}

// Property describes an enumerated parameter property.
type Property struct {
	Name          string      `json:"name"`
	ID            string      `json:"id"`
	Definition    string      `json:"definition,omitempty"`
	NominalValues []string    `json:"nominalValues,omitempty"`
	References    []Reference `json:"references,omitempty"`
}

// Parameter is one input of a measurand. Parameters are identified by name
// within their entry.
type Parameter struct {
	Name       string    `json:"name"`
	Optional   bool      `json:"optional"`
	Definition string    `json:"definition,omitempty"`
	Quantity   *Quantity `json:"quantity,omitempty"`
	MLayer     *MLayer   `json:"mLayer,omitempty"`
	Property   *Property `json:"property,omitempty"`
}

// Result describes what a measurand produces.
type Result struct {
	Name     string    `json:"name,omitempty"`
	Quantity *Quantity `json:"quantity,omitempty"`
	MLayer   *MLayer   `json:"mLayer,omitempty"`
}

// Entry is one catalog item (a taxon). Name is the identity key.
type Entry struct {
	Name        string      `json:"name"`
	Deprecated  bool        `json:"deprecated"`
	Replacement string      `json:"replacement,omitempty"`
	Definition  string      `json:"definition,omitempty"`
	Result      *Result     `json:"result,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Disciplines []string    `json:"disciplines,omitempty"`
	References  []Reference `json:"references,omitempty"`
}

// Equal reports whether two quantities are identical. Nil equals only nil.
func (q *Quantity) Equal(o *Quantity) bool {
	if q == nil || o == nil {
		return q == o
	}
	return *q == *o
}

// Equal reports whether two registry mappings are identical.
func (m *MLayer) Equal(o *MLayer) bool {
	if m == nil || o == nil {
		return m == o
	}
	return *m == *o
}

// Equal compares both optional halves of a reference.
func (r Reference) Equal(o Reference) bool {
	if (r.CategoryTag == nil) != (o.CategoryTag == nil) {
		return false
	}
	if r.CategoryTag != nil && *r.CategoryTag != *o.CategoryTag {
		return false
	}
	if (r.ReferenceURL == nil) != (o.ReferenceURL == nil) {
		return false
	}
	return r.ReferenceURL == nil || *r.ReferenceURL == *o.ReferenceURL
}

// ReferencesEqual compares reference lists in order.
func ReferencesEqual(a, b []Reference) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Equal compares properties; nominal values and references are ordered.
func (p *Property) Equal(o *Property) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Name != o.Name || p.ID != o.ID || p.Definition != o.Definition {
		return false
	}
	if !stringsEqual(p.NominalValues, o.NominalValues) {
		return false
	}
	return ReferencesEqual(p.References, o.References)
}

// Equal compares every field of a parameter.
func (p Parameter) Equal(o Parameter) bool {
	return p.Name == o.Name &&
		p.Optional == o.Optional &&
		p.Definition == o.Definition &&
		p.Quantity.Equal(o.Quantity) &&
		p.MLayer.Equal(o.MLayer) &&
		p.Property.Equal(o.Property)
}

// Equal compares result descriptors structurally.
func (r *Result) Equal(o *Result) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Name == o.Name && r.Quantity.Equal(o.Quantity) && r.MLayer.Equal(o.MLayer)
}

// DisciplineSet returns the disciplines sorted and de-duplicated.
func (e Entry) DisciplineSet() []string {
	if len(e.Disciplines) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(e.Disciplines))
	out := make([]string, 0, len(e.Disciplines))
	for _, d := range e.Disciplines {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// HasDiscipline reports whether the entry belongs to the named discipline.
func (e Entry) HasDiscipline(name string) bool {
	for _, d := range e.Disciplines {
		if d == name {
			return true
		}
	}
	return false
}

// ParameterMap indexes parameters by name. Later duplicates win.
func (e Entry) ParameterMap() map[string]Parameter {
	m := make(map[string]Parameter, len(e.Parameters))
	for _, p := range e.Parameters {
		m[p.Name] = p
	}
	return m
}

// Equal reports structural equality of two entries. Parameters are compared by
// name, disciplines as a set, references in order.
func (e Entry) Equal(o Entry) bool {
	if e.Name != o.Name ||
		e.Deprecated != o.Deprecated ||
		e.Replacement != o.Replacement ||
		e.Definition != o.Definition {
		return false
	}
	if !e.Result.Equal(o.Result) {
		return false
	}
	if !stringsEqual(e.DisciplineSet(), o.DisciplineSet()) {
		return false
	}
	if !ReferencesEqual(e.References, o.References) {
		return false
	}
	ep, op := e.ParameterMap(), o.ParameterMap()
	if len(ep) != len(op) {
		return false
	}
	for name, p := range ep {
		q, ok := op[name]
		if !ok || !p.Equal(q) {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
