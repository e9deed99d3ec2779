package cappedstore

// stats.go defines the sink record stores report their statistics into.

// StatsSink accepts key/value stat pairs from AppendStats. Reporting is
// pure: it never mutates store state or interacts with eviction.
type StatsSink interface {
	Append(name string, value any)
}

// MapStatsSink is a StatsSink that collects pairs into a map.
type MapStatsSink struct {
	Values map[string]any
}

// NewMapStatsSink returns an empty map-backed sink.
func NewMapStatsSink() *MapStatsSink {
	return &MapStatsSink{Values: make(map[string]any)}
}

// Append implements StatsSink.
func (s *MapStatsSink) Append(name string, value any) {
	s.Values[name] = value
}
