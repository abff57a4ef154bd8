package lifecycle

// ButtonText returns the call to action shown to the rider for s. The segment is
// accepted for compatibility with older clients and does not change the text.
// Terminal and unknown statuses have no action.
func ButtonText(s Status, _ Segment) (string, bool) {
	r, ok := table[s]
	if !ok || r.final || r.button == "" {
		return "", false
	}
	return r.button, true
}

// StatusLabel returns the display label for s, or the raw token when s is unknown.
func StatusLabel(s Status) string {
	if r, ok := table[s]; ok {
		return r.label
	}
	return string(s)
}
