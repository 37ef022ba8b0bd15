package history

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"taxhist/internal/taxonomy"
)

func entry(name string) taxonomy.Entry {
	return taxonomy.Entry{
		Name:        name,
		Definition:  "definition of " + name,
		Parameters:  []taxonomy.Parameter{{Name: "foo", Quantity: &taxonomy.Quantity{Name: "length"}}},
		Disciplines: []string{"Dimensional", "Thermodynamics"},
	}
}

func TestDiff_SelfIsEmpty(t *testing.T) {
	s := taxonomy.Snapshot{"A": entry("A"), "B": entry("B")}
	if changes := Diff(s, s); len(changes) != 0 {
		t.Errorf("Diff(S, S) = %+v, want empty", changes)
	}
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	old := taxonomy.Snapshot{"A": entry("A"), "B": entry("B")}
	next := taxonomy.Snapshot{"B": entry("B"), "C": entry("C")}

	changes := Diff(old, next)
	if len(changes) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(changes), changes)
	}
	if changes[0].Kind != ChangeAdded || changes[0].Name != "C" || changes[0].New == nil {
		t.Errorf("changes[0] = %+v", changes[0])
	}
	if changes[1].Kind != ChangeRemoved || changes[1].Name != "A" || changes[1].Old == nil {
		t.Errorf("changes[1] = %+v", changes[1])
	}
}

func TestDiff_FromEmpty(t *testing.T) {
	changes := Diff(taxonomy.Snapshot{}, taxonomy.Snapshot{"A": entry("A")})
	if len(changes) != 1 || changes[0].Kind != ChangeAdded || changes[0].Name != "A" {
		t.Errorf("Diff({}, {A}) = %+v", changes)
	}
}

func TestDiff_DeprecatedOnly(t *testing.T) {
	old := taxonomy.Snapshot{"A": {Name: "A"}}
	next := taxonomy.Snapshot{"A": {Name: "A", Deprecated: true}}

	changes := Diff(old, next)
	if len(changes) != 1 || changes[0].Kind != ChangeDeprecated || changes[0].Name != "A" {
		t.Errorf("changes = %+v", changes)
	}
	if len(changes[0].Fields) != 0 {
		t.Errorf("deprecated change should carry no fields, got %+v", changes[0].Fields)
	}
}

func TestDiff_DeprecatedSuppressesModified(t *testing.T) {
	o := entry("A")
	n := entry("A")
	n.Deprecated = true
	n.Replacement = "B"
	n.Definition = "rewritten"
	n.Disciplines = []string{"Optics"}

	changes := Diff(taxonomy.Snapshot{"A": o}, taxonomy.Snapshot{"A": n})
	if len(changes) != 1 {
		t.Fatalf("len = %d, want exactly one change: %+v", len(changes), changes)
	}
	if changes[0].Kind != ChangeDeprecated {
		t.Errorf("Kind = %s, want deprecated", changes[0].Kind)
	}
}

func TestDiff_Undeprecated(t *testing.T) {
	o := entry("A")
	o.Deprecated = true
	n := entry("A")

	changes := Diff(taxonomy.Snapshot{"A": o}, taxonomy.Snapshot{"A": n})
	if len(changes) != 1 || changes[0].Kind != ChangeModified {
		t.Fatalf("changes = %+v", changes)
	}
	if f := changes[0].Fields; len(f) != 1 || f[0].Field != FieldDeprecated || f[0].NewValue != false {
		t.Errorf("fields = %+v", f)
	}
}

func TestDiff_ParameterRename(t *testing.T) {
	o := entry("X")
	n := entry("X")
	n.Parameters = []taxonomy.Parameter{{Name: "bar", Quantity: &taxonomy.Quantity{Name: "length"}}}

	changes := Diff(taxonomy.Snapshot{"X": o}, taxonomy.Snapshot{"X": n})
	if len(changes) != 1 || changes[0].Kind != ChangeModified {
		t.Fatalf("changes = %+v", changes)
	}
	fields := changes[0].Fields
	if len(fields) != 2 {
		t.Fatalf("fields = %+v, want one removal and one addition", fields)
	}
	if fields[0].Field != "parameter:bar" || fields[0].Kind != FieldAdded {
		t.Errorf("fields[0] = %+v", fields[0])
	}
	if fields[1].Field != "parameter:foo" || fields[1].Kind != FieldRemoved {
		t.Errorf("fields[1] = %+v", fields[1])
	}
}

func TestDiff_ParameterModified(t *testing.T) {
	o := entry("X")
	n := entry("X")
	n.Parameters = []taxonomy.Parameter{{Name: "foo", Optional: true, Quantity: &taxonomy.Quantity{Name: "length"}}}

	changes := Diff(taxonomy.Snapshot{"X": o}, taxonomy.Snapshot{"X": n})
	if len(changes) != 1 || len(changes[0].Fields) != 1 {
		t.Fatalf("changes = %+v", changes)
	}
	if fc := changes[0].Fields[0]; fc.Field != "parameter:foo" || fc.Kind != FieldModified {
		t.Errorf("field = %+v", fc)
	}
}

func TestDiff_DisciplineOrderIgnored(t *testing.T) {
	o := entry("A")
	n := entry("A")
	n.Disciplines = []string{"Thermodynamics", "Dimensional"}

	if changes := Diff(taxonomy.Snapshot{"A": o}, taxonomy.Snapshot{"A": n}); len(changes) != 0 {
		t.Errorf("discipline reordering should not be a change: %+v", changes)
	}
}

func TestDiffFields(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*taxonomy.Entry)
		wantField string
		wantKind  FieldChangeKind
	}{
		{"replacement added", func(e *taxonomy.Entry) { e.Replacement = "B" }, FieldReplacement, FieldAdded},
		{"definition removed", func(e *taxonomy.Entry) { e.Definition = "" }, FieldDefinition, FieldRemoved},
		{"result added", func(e *taxonomy.Entry) {
			e.Result = &taxonomy.Result{Quantity: &taxonomy.Quantity{Name: "q"}}
		}, FieldResult, FieldAdded},
		{"disciplines changed", func(e *taxonomy.Entry) { e.Disciplines = []string{"Optics"} }, FieldDisciplines, FieldModified},
		{"disciplines cleared", func(e *taxonomy.Entry) { e.Disciplines = nil }, FieldDisciplines, FieldRemoved},
		{"references added", func(e *taxonomy.Entry) {
			e.References = []taxonomy.Reference{{ReferenceURL: &taxonomy.ReferenceURL{Name: "n", URL: "u"}}}
		}, FieldExternalReferences, FieldAdded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := entry("A")
			n := entry("A")
			tt.modify(&n)

			fields := DiffFields(o, n)
			if len(fields) != 1 {
				t.Fatalf("fields = %+v, want one", fields)
			}
			if fields[0].Field != tt.wantField || fields[0].Kind != tt.wantKind {
				t.Errorf("field = %s/%s, want %s/%s", fields[0].Field, fields[0].Kind, tt.wantField, tt.wantKind)
			}
		})
	}
}

func TestDiffFields_DefinitionPatch(t *testing.T) {
	o := entry("A")
	n := entry("A")
	n.Definition = "definition of A, revised"

	fields := DiffFields(o, n)
	if len(fields) != 1 || fields[0].Field != FieldDefinition {
		t.Fatalf("fields = %+v", fields)
	}
	if !strings.Contains(fields[0].Patch, "@@") {
		t.Errorf("expected a textual patch, got %q", fields[0].Patch)
	}
}

func TestDiff_Ordering(t *testing.T) {
	dep := entry("D")
	mod := entry("M")
	old := taxonomy.Snapshot{"Z": entry("Z"), "Y": entry("Y"), "D": dep, "M": mod}

	depNew := dep
	depNew.Deprecated = true
	modNew := mod
	modNew.Definition = "changed"
	next := taxonomy.Snapshot{"B": entry("B"), "A": entry("A"), "D": depNew, "M": modNew}

	var got []string
	for _, c := range Diff(old, next) {
		got = append(got, fmt.Sprintf("%s %s", c.Kind, c.Name))
	}
	want := []string{"added A", "added B", "removed Y", "removed Z", "deprecated D", "modified M"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func entryGen() *rapid.Generator[taxonomy.Entry] {
	return rapid.Custom(func(t *rapid.T) taxonomy.Entry {
		e := taxonomy.Entry{
			Name:        rapid.StringMatching(`[A-E]`).Draw(t, "name"),
			Deprecated:  rapid.Bool().Draw(t, "deprecated"),
			Definition:  rapid.SampledFrom([]string{"", "one", "two"}).Draw(t, "definition"),
			Disciplines: rapid.SliceOfN(rapid.SampledFrom([]string{"X", "Y", "Z"}), 0, 3).Draw(t, "disciplines"),
		}
		for _, p := range rapid.SliceOfN(rapid.SampledFrom([]string{"p", "q", "r"}), 0, 3).Draw(t, "params") {
			e.Parameters = append(e.Parameters, taxonomy.Parameter{Name: p, Optional: rapid.Bool().Draw(t, "optional")})
		}
		return e
	})
}

func snapshotGen() *rapid.Generator[taxonomy.Snapshot] {
	return rapid.Custom(func(t *rapid.T) taxonomy.Snapshot {
		return taxonomy.NewSnapshot(rapid.SliceOfN(entryGen(), 0, 6).Draw(t, "entries"))
	})
}

func TestDiff_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := snapshotGen().Draw(t, "a")
		b := snapshotGen().Draw(t, "b")

		if changes := Diff(a, a); len(changes) != 0 {
			t.Fatalf("self diff not empty: %+v", changes)
		}

		seen := make(map[string]bool)
		for _, c := range Diff(a, b) {
			if seen[c.Name] {
				t.Fatalf("more than one change for %s", c.Name)
			}
			seen[c.Name] = true

			o, inOld := a[c.Name]
			n, inNew := b[c.Name]
			switch c.Kind {
			case ChangeAdded:
				if inOld || !inNew {
					t.Fatalf("bad added change for %s", c.Name)
				}
			case ChangeRemoved:
				if !inOld || inNew {
					t.Fatalf("bad removed change for %s", c.Name)
				}
			case ChangeDeprecated:
				if o.Deprecated || !n.Deprecated {
					t.Fatalf("deprecated change without a flip for %s", c.Name)
				}
			case ChangeModified:
				if o.Equal(n) || len(c.Fields) == 0 {
					t.Fatalf("modified change for identical entry %s", c.Name)
				}
			}
		}

		for name, o := range a {
			if n, ok := b[name]; ok && !o.Equal(n) && !seen[name] {
				t.Fatalf("missing change for %s", name)
			}
		}
	})
}

func TestDiff_AllAddedFromEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := snapshotGen().Draw(t, "s")
		changes := Diff(taxonomy.Snapshot{}, s)
		if len(changes) != len(s) {
			t.Fatalf("len = %d, want %d", len(changes), len(s))
		}
		for _, c := range changes {
			if c.Kind != ChangeAdded {
				t.Fatalf("unexpected %s change", c.Kind)
			}
		}
	})
}
