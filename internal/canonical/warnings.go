package canonical

// WarningSet is an ordered warning accumulator that deduplicates by an
// arbitrary key, so "unmapped token" style warnings fire once per
// distinct token per run rather than once per occurrence.
type WarningSet struct {
	seen     map[string]struct{}
	warnings []string
}

// NewWarningSet returns an empty accumulator.
func NewWarningSet() *WarningSet {
	return &WarningSet{seen: make(map[string]struct{})}
}

// Add appends a warning unconditionally.
func (w *WarningSet) Add(message string) {
	w.warnings = append(w.warnings, message)
}

// AddOnce appends the warning only the first time key is seen.
func (w *WarningSet) AddOnce(key, message string) {
	if _, ok := w.seen[key]; ok {
		return
	}
	w.seen[key] = struct{}{}
	w.warnings = append(w.warnings, message)
}

// Extend appends already-formed warnings in order.
func (w *WarningSet) Extend(messages []string) {
	w.warnings = append(w.warnings, messages...)
}

// Warnings returns the accumulated list in insertion order.
func (w *WarningSet) Warnings() []string {
	return w.warnings
}
