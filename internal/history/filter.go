package history

import (
	"strings"
)

// FilterByEntryName returns the history of a single entry and the name that
// was matched.
//
// The query is trimmed and matched exactly against every name seen in entries
// or in the initial snapshot; failing that, case-insensitively. When the entry was part of the initial
// snapshot but has no added change, an added change at the initial commit is
// appended. The result keeps the order of entries with the synthesized change
// last.
func FilterByEntryName(entries []HistoryEntry, initial *InitialSnapshot, name string) (string, []HistoryEntry) {
	query := strings.TrimSpace(name)
	matched := matchName(entries, initial, query)
	caseless := matched == ""
	target := matched
	if caseless {
		target = query
	}

	result := filterChanges(entries, func(c TaxonChange) bool {
		n := strings.TrimSpace(c.Name)
		if caseless {
			return strings.EqualFold(n, target)
		}
		return n == target
	})

	hasAdded := false
	for _, e := range result {
		for _, c := range e.Changes {
			if c.Kind == ChangeAdded {
				hasAdded = true
			}
		}
	}

	if !hasAdded && initial != nil {
		if initialName, ok := initialMatch(initial, target); ok {
			if matched == "" {
				matched = initialName
			}
			result = append(result, HistoryEntry{
				Hash:    initial.Hash,
				Date:    initial.Date,
				Author:  initial.Author,
				Message: initial.Message,
				Changes: []TaxonChange{{Name: initialName, Kind: ChangeAdded}},
			})
		}
	}

	if matched == "" {
		matched = query
	}
	return matched, result
}

// matchName finds query among all change names and initial snapshot names:
// exact first, then case-insensitive. Returns "" when nothing matches.
func matchName(entries []HistoryEntry, initial *InitialSnapshot, query string) string {
	var fallback string
	check := func(n string) bool {
		n = strings.TrimSpace(n)
		if n == query {
			return true
		}
		if fallback == "" && strings.EqualFold(n, query) {
			fallback = n
		}
		return false
	}
	for _, e := range entries {
		for _, c := range e.Changes {
			if check(c.Name) {
				return query
			}
		}
	}
	if initial != nil {
		for _, n := range initial.EntryNames {
			if check(n) {
				return query
			}
		}
	}
	return fallback
}

func initialMatch(initial *InitialSnapshot, name string) (string, bool) {
	var fallback string
	for _, n := range initial.EntryNames {
		n = strings.TrimSpace(n)
		if n == name {
			return n, true
		}
		if fallback == "" && strings.EqualFold(n, name) {
			fallback = n
		}
	}
	return fallback, fallback != ""
}

// FilterByDiscipline keeps the changes that concern discipline.
//
// Added entries must have it, removed entries must have had it, deprecated
// entries must have or have had it. A modified entry matches when its
// membership changed, when its disciplines field change mentions the
// discipline, or (without such a field change) when it had or has it.
func FilterByDiscipline(entries []HistoryEntry, discipline string) []HistoryEntry {
	return filterChanges(entries, func(c TaxonChange) bool {
		had := c.Old != nil && c.Old.HasDiscipline(discipline)
		has := c.New != nil && c.New.HasDiscipline(discipline)

		switch c.Kind {
		case ChangeAdded:
			return has
		case ChangeRemoved:
			return had
		case ChangeDeprecated:
			return had || has
		case ChangeModified:
			if had != has {
				return true
			}
			for _, fc := range c.Fields {
				if fc.Field == FieldDisciplines {
					return mentions(fc.OldValue, discipline) || mentions(fc.NewValue, discipline)
				}
			}
			return had || has
		}
		return false
	})
}

func filterChanges(entries []HistoryEntry, keep func(TaxonChange) bool) []HistoryEntry {
	result := []HistoryEntry{}
	for _, e := range entries {
		var kept []TaxonChange
		for _, c := range e.Changes {
			if keep(c) {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			e.Changes = kept
			result = append(result, e)
		}
	}
	return result
}

// mentions reports whether a field value lists s. Values decoded from JSON
// arrive as []interface{}.
func mentions(v interface{}, s string) bool {
	switch list := v.(type) {
	case []string:
		for _, item := range list {
			if item == s {
				return true
			}
		}
	case []interface{}:
		for _, item := range list {
			if str, ok := item.(string); ok && str == s {
				return true
			}
		}
	}
	return false
}
