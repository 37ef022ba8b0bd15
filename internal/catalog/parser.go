// Package catalog turns raw catalog file content into taxonomy entries.
package catalog

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"taxhist/internal/taxonomy"
)

// ErrNoEntries is returned by ParseCatalog when the document holds no Taxon
// elements and has no recognizable catalog root.
var ErrNoEntries = errors.New("catalog: no taxon entries found")

// Parser converts file content into entries.
type Parser interface {
	// ParseCatalog parses a consolidated catalog into a snapshot.
	ParseCatalog(data []byte) (taxonomy.Snapshot, error)
	// ParseFragment parses a per-entry source file. A fragment may hold zero or
	// more entries.
	ParseFragment(data []byte) ([]taxonomy.Entry, error)
}

// XMLParser reads the measurand taxonomy XML format. Namespace prefixes are
// ignored, so "mtc:Taxon" and "Taxon" are equivalent.
type XMLParser struct{}

// NewXMLParser returns a parser for the XML catalog format.
func NewXMLParser() *XMLParser {
	return &XMLParser{}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCatalog decodes every Taxon element in the document.
func (p *XMLParser) ParseCatalog(data []byte) (taxonomy.Snapshot, error) {
	entries, sawRoot, err := decodeTaxa(data)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 && !sawRoot {
		return nil, ErrNoEntries
	}
	return taxonomy.NewSnapshot(entries), nil
}

// ParseFragment decodes the Taxon elements in a fragment. Unnamed entries are
// dropped.
func (p *XMLParser) ParseFragment(data []byte) ([]taxonomy.Entry, error) {
	entries, _, err := decodeTaxa(data)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Name != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

// decodeTaxa streams the document and decodes Taxon elements at any depth.
// sawRoot reports whether a Taxonomy element was present.
func decodeTaxa(data []byte) ([]taxonomy.Entry, bool, error) {
	decoder := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))

	var entries []taxonomy.Entry
	sawRoot := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, sawRoot, fmt.Errorf("decode catalog: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "Taxonomy":
			sawRoot = true
		case "Taxon":
			var x xmlTaxon
			if err := decoder.DecodeElement(&x, &start); err != nil {
				return nil, sawRoot, fmt.Errorf("decode taxon: %w", err)
			}
			entries = append(entries, x.entry())
		}
	}
	return entries, sawRoot, nil
}

type xmlQuantity struct {
	Name string `xml:"name,attr"`
}

type xmlMLayer struct {
	Aspect string `xml:"aspect,attr"`
	ID     string `xml:"id,attr"`
}

// xmlPair accepts name/value/url both as attributes and as child elements.
type xmlPair struct {
	NameAttr  string `xml:"name,attr"`
	ValueAttr string `xml:"value,attr"`
	URLAttr   string `xml:"url,attr"`
	Name      string `xml:"name"`
	Value     string `xml:"value"`
	URL       string `xml:"url"`
}

type xmlReference struct {
	CategoryTag  *xmlPair `xml:"CategoryTag"`
	ReferenceURL *xmlPair `xml:"ReferenceUrl"`
}

type xmlReferences struct {
	References []xmlReference `xml:"Reference"`
}

type xmlProperty struct {
	Name               string         `xml:"name,attr"`
	ID                 string         `xml:"id,attr"`
	Definition         string         `xml:"Definition"`
	NominalValues      string         `xml:"NominalValues"`
	ExternalReferences *xmlReferences `xml:"ExternalReferences"`
}

type xmlParameter struct {
	Name       string       `xml:"name,attr"`
	Optional   string       `xml:"optional,attr"`
	Definition string       `xml:"Definition"`
	Quantity   *xmlQuantity `xml:"Quantity"`
	MLayer     *xmlMLayer   `xml:"mLayer"`
	Property   *xmlProperty `xml:"Property"`
}

type xmlResult struct {
	Name     string       `xml:"name,attr"`
	Quantity *xmlQuantity `xml:"Quantity"`
	MLayer   *xmlMLayer   `xml:"mLayer"`
}

type xmlDiscipline struct {
	Name string `xml:"name,attr"`
	Text string `xml:",chardata"`
}

type xmlTaxon struct {
	Name               string          `xml:"name,attr"`
	Deprecated         string          `xml:"deprecated,attr"`
	Replacement        string          `xml:"replacement,attr"`
	Definition         string          `xml:"Definition"`
	Result             *xmlResult      `xml:"Result"`
	Parameters         []xmlParameter  `xml:"Parameter"`
	Disciplines        []xmlDiscipline `xml:"Discipline"`
	ExternalReferences *xmlReferences  `xml:"ExternalReferences"`
}

func (x xmlTaxon) entry() taxonomy.Entry {
	e := taxonomy.Entry{
		Name:        strings.TrimSpace(x.Name),
		Deprecated:  parseBool(x.Deprecated),
		Replacement: strings.TrimSpace(x.Replacement),
		Definition:  strings.TrimSpace(x.Definition),
	}
	if x.Result != nil {
		e.Result = &taxonomy.Result{
			Name:     strings.TrimSpace(x.Result.Name),
			Quantity: x.Result.Quantity.convert(),
			MLayer:   x.Result.MLayer.convert(),
		}
	}
	for _, p := range x.Parameters {
		e.Parameters = append(e.Parameters, p.convert())
	}
	for _, d := range x.Disciplines {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			name = strings.TrimSpace(d.Text)
		}
		if name != "" {
			e.Disciplines = append(e.Disciplines, name)
		}
	}
	e.References = x.ExternalReferences.convert()
	return e
}

func (q *xmlQuantity) convert() *taxonomy.Quantity {
	if q == nil {
		return nil
	}
	return &taxonomy.Quantity{Name: strings.TrimSpace(q.Name)}
}

func (m *xmlMLayer) convert() *taxonomy.MLayer {
	if m == nil {
		return nil
	}
	return &taxonomy.MLayer{Aspect: strings.TrimSpace(m.Aspect), ID: strings.TrimSpace(m.ID)}
}

func (p xmlParameter) convert() taxonomy.Parameter {
	out := taxonomy.Parameter{
		Name:       strings.TrimSpace(p.Name),
		Optional:   parseBool(p.Optional),
		Definition: strings.TrimSpace(p.Definition),
		Quantity:   p.Quantity.convert(),
		MLayer:     p.MLayer.convert(),
	}
	if p.Property != nil {
		out.Property = &taxonomy.Property{
			Name:          strings.TrimSpace(p.Property.Name),
			ID:            strings.TrimSpace(p.Property.ID),
			Definition:    strings.TrimSpace(p.Property.Definition),
			NominalValues: strings.Fields(p.Property.NominalValues),
			References:    p.Property.ExternalReferences.convert(),
		}
	}
	return out
}

func (r *xmlReferences) convert() []taxonomy.Reference {
	if r == nil || len(r.References) == 0 {
		return nil
	}
	out := make([]taxonomy.Reference, 0, len(r.References))
	for _, ref := range r.References {
		var conv taxonomy.Reference
		if ref.CategoryTag != nil {
			conv.CategoryTag = &taxonomy.CategoryTag{
				Name:  ref.CategoryTag.name(),
				Value: firstNonEmpty(ref.CategoryTag.ValueAttr, ref.CategoryTag.Value),
			}
		}
		if ref.ReferenceURL != nil {
			conv.ReferenceURL = &taxonomy.ReferenceURL{
				Name: ref.ReferenceURL.name(),
				URL:  firstNonEmpty(ref.ReferenceURL.URLAttr, ref.ReferenceURL.URL),
			}
		}
		out = append(out, conv)
	}
	return out
}

func (p *xmlPair) name() string {
	return firstNonEmpty(p.NameAttr, p.Name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true
	}
	return false
}
