package taxonomy

import "sort"

// Snapshot is the full catalog state at one revision, keyed by entry name.
type Snapshot map[string]Entry

// NewSnapshot builds a snapshot from entries in source order. When a name
// appears more than once the last occurrence wins. Unnamed entries are dropped.
func NewSnapshot(entries []Entry) Snapshot {
	s := make(Snapshot, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		s[e.Name] = e
	}
	return s
}

// Names returns the entry names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
