package history

// DefaultNoiseWindow is the default look-ahead used by FilterNoise.
const DefaultNoiseWindow = 2

type changeKey struct {
	entry int
	name  string
	kind  ChangeKind
}

// FilterNoise drops remove/re-add pairs for the same name when the re-add
// happens at most window entries after the removal. entries must be ordered
// oldest-first; distance is measured in history entries. Entries left without
// changes are dropped. A window of zero disables filtering.
func FilterNoise(entries []HistoryEntry, window int) []HistoryEntry {
	if window <= 0 {
		return entries
	}

	noise := make(map[changeKey]bool)
	removedAt := make(map[string]int)

	for i, entry := range entries {
		for _, c := range entry.Changes {
			switch c.Kind {
			case ChangeRemoved:
				removedAt[c.Name] = i
			case ChangeAdded:
				if j, ok := removedAt[c.Name]; ok && i-j <= window {
					noise[changeKey{j, c.Name, ChangeRemoved}] = true
					noise[changeKey{i, c.Name, ChangeAdded}] = true
				}
				delete(removedAt, c.Name)
			}
		}
	}

	if len(noise) == 0 {
		return entries
	}

	filtered := make([]HistoryEntry, 0, len(entries))
	for i, entry := range entries {
		kept := make([]TaxonChange, 0, len(entry.Changes))
		for _, c := range entry.Changes {
			if !noise[changeKey{i, c.Name, c.Kind}] {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			entry.Changes = kept
			filtered = append(filtered, entry)
		}
	}
	return filtered
}
