package lifecycle

// Gate reports whether live content may render: the channel is connected and
// the initial data has been loaded. It is false in every other combination,
// including while recovering.
func Gate(state State, dataPresent bool) bool {
	return state == StateConnected && dataPresent
}

// choose maps the gate and fallback visibility to a View.
func choose(gate, fallbackVisible bool) View {
	switch {
	case gate:
		return ViewContent
	case fallbackVisible:
		return ViewFallback
	default:
		return ViewBlank
	}
}
