package model

// LabelSet is a case-sensitive set of label names.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from names. Empty names are ignored.
func NewLabelSet(names ...string) LabelSet {
	set := make(LabelSet, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

// Contains reports whether name is in the set.
func (s LabelSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// MatchesAny reports whether any of labels is in the set.
func (s LabelSet) MatchesAny(labels []string) bool {
	for _, l := range labels {
		if s.Contains(l) {
			return true
		}
	}
	return false
}

// Names returns the set members in no particular order.
func (s LabelSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}
