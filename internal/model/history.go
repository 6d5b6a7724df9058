package model

// ClassChange describes a matched class whose file content changed between
// two scans.
type ClassChange struct {
	ClassName string `json:"class_name"`
	OldDigest string `json:"old_digest"`
	NewDigest string `json:"new_digest"`
}

// HistoryDiff is the difference between two scan reports of the same target.
type HistoryDiff struct {
	// Target is "namespace@annotation".
	Target string `json:"target"`

	// Previous and Current are the compared reports.
	Previous *ScanReport `json:"previous"`
	Current  *ScanReport `json:"current"`

	// Added lists classes that match now but did not before.
	Added []string `json:"added,omitempty"`

	// Removed lists classes that matched before but no longer do.
	Removed []string `json:"removed,omitempty"`

	// Changed lists classes matched in both whose digest differs.
	Changed []ClassChange `json:"changed,omitempty"`
}

// HasChanges reports whether anything differs.
func (d *HistoryDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// DiffReports compares two reports. Classes are keyed by name; the first
// match of a class supplies its digest.
func DiffReports(previous, current *ScanReport) *HistoryDiff {
	diff := &HistoryDiff{
		Target:   current.Target(),
		Previous: previous,
		Current:  current,
	}

	before := digestsByClass(previous)
	after := digestsByClass(current)

	for _, name := range current.MatchedClasses() {
		old, ok := before[name]
		if !ok {
			diff.Added = append(diff.Added, name)
			continue
		}
		if old != "" && after[name] != "" && old != after[name] {
			diff.Changed = append(diff.Changed, ClassChange{
				ClassName: name,
				OldDigest: old,
				NewDigest: after[name],
			})
		}
	}
	for _, name := range previous.MatchedClasses() {
		if _, ok := after[name]; !ok {
			diff.Removed = append(diff.Removed, name)
		}
	}

	return diff
}

func digestsByClass(r *ScanReport) map[string]string {
	m := make(map[string]string, len(r.Matches))
	for _, match := range r.Matches {
		if _, ok := m[match.ClassName]; !ok {
			m[match.ClassName] = match.Digest
		}
	}
	return m
}
