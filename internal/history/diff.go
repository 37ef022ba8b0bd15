package history

import (
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"

	"taxhist/internal/taxonomy"
)

// Diff computes the semantic delta between two snapshots. Changes are ordered by
// kind (added, removed, deprecated, modified) and then by name.
func Diff(from, to taxonomy.Snapshot) []TaxonChange {
	changes := []TaxonChange{}

	for name, n := range to {
		if _, ok := from[name]; !ok {
			changes = append(changes, TaxonChange{Name: name, Kind: ChangeAdded, New: &n})
		}
	}

	for name, o := range from {
		n, ok := to[name]
		if !ok {
			changes = append(changes, TaxonChange{Name: name, Kind: ChangeRemoved, Old: &o})
			continue
		}
		if change, ok := diffEntry(o, n); ok {
			changes = append(changes, change)
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		ki, kj := kindOrder[changes[i].Kind], kindOrder[changes[j].Kind]
		if ki != kj {
			return ki < kj
		}
		return changes[i].Name < changes[j].Name
	})
	return changes
}

// diffEntry compares two versions of the same entry. A false to true flip of
// the deprecated flag yields a single deprecated change and nothing else.
func diffEntry(o, n taxonomy.Entry) (TaxonChange, bool) {
	if !o.Deprecated && n.Deprecated {
		return TaxonChange{Name: n.Name, Kind: ChangeDeprecated, Old: &o, New: &n}, true
	}

	fields := DiffFields(o, n)
	if len(fields) == 0 {
		return TaxonChange{}, false
	}
	return TaxonChange{Name: n.Name, Kind: ChangeModified, Old: &o, New: &n, Fields: fields}, true
}

// DiffFields lists field-level deltas between two versions of an entry.
// Parameters are matched by name, so a rename shows up as one removal and one
// addition.
func DiffFields(o, n taxonomy.Entry) []FieldChange {
	var fields []FieldChange

	if o.Deprecated != n.Deprecated {
		fields = append(fields, FieldChange{
			Field: FieldDeprecated, Kind: FieldModified,
			OldValue: o.Deprecated, NewValue: n.Deprecated,
		})
	}

	if fc, ok := diffString(FieldReplacement, o.Replacement, n.Replacement); ok {
		fields = append(fields, fc)
	}

	if fc, ok := diffString(FieldDefinition, o.Definition, n.Definition); ok {
		if fc.Kind == FieldModified {
			fc.Patch = textPatch(o.Definition, n.Definition)
		}
		fields = append(fields, fc)
	}

	if !o.Result.Equal(n.Result) {
		fields = append(fields, FieldChange{
			Field: FieldResult, Kind: presenceKind(o.Result != nil, n.Result != nil),
			OldValue: valueOrNil(o.Result), NewValue: valueOrNil(n.Result),
		})
	}

	fields = append(fields, diffParameters(o, n)...)

	oldSet, newSet := o.DisciplineSet(), n.DisciplineSet()
	if !equalStrings(oldSet, newSet) {
		fields = append(fields, FieldChange{
			Field: FieldDisciplines, Kind: presenceKind(len(oldSet) > 0, len(newSet) > 0),
			OldValue: oldSet, NewValue: newSet,
		})
	}

	if !taxonomy.ReferencesEqual(o.References, n.References) {
		fields = append(fields, FieldChange{
			Field:    FieldExternalReferences,
			Kind:     presenceKind(len(o.References) > 0, len(n.References) > 0),
			OldValue: o.References, NewValue: n.References,
		})
	}

	return fields
}

func diffParameters(o, n taxonomy.Entry) []FieldChange {
	oldParams, newParams := o.ParameterMap(), n.ParameterMap()

	names := make([]string, 0, len(oldParams)+len(newParams))
	for name := range oldParams {
		names = append(names, name)
	}
	for name := range newParams {
		if _, ok := oldParams[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var fields []FieldChange
	for _, name := range names {
		op, inOld := oldParams[name]
		np, inNew := newParams[name]
		field := FieldParameterPrefix + name
		switch {
		case !inOld:
			fields = append(fields, FieldChange{Field: field, Kind: FieldAdded, NewValue: np})
		case !inNew:
			fields = append(fields, FieldChange{Field: field, Kind: FieldRemoved, OldValue: op})
		case !op.Equal(np):
			fields = append(fields, FieldChange{Field: field, Kind: FieldModified, OldValue: op, NewValue: np})
		}
	}
	return fields
}

func diffString(field, o, n string) (FieldChange, bool) {
	if o == n {
		return FieldChange{}, false
	}
	fc := FieldChange{Field: field, Kind: presenceKind(o != "", n != "")}
	if o != "" {
		fc.OldValue = o
	}
	if n != "" {
		fc.NewValue = n
	}
	return fc, true
}

func presenceKind(hadOld, hasNew bool) FieldChangeKind {
	switch {
	case !hadOld && hasNew:
		return FieldAdded
	case hadOld && !hasNew:
		return FieldRemoved
	default:
		return FieldModified
	}
}

func textPatch(o, n string) string {
	dmp := diffmatchpatch.New()
	return dmp.PatchToText(dmp.PatchMake(o, n))
}

func valueOrNil(r *taxonomy.Result) interface{} {
	if r == nil {
		return nil
	}
	return *r
}

func equalStrings(a, b []string) bool {
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
