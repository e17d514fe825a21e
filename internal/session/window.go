package session

// DefaultMaxTurns is the number of non-system messages retained per session.
const DefaultMaxTurns = 20

// Window bounds history length to 1 system message plus MaxTurns entries.
type Window struct {
	MaxTurns int
}

// Cap is the maximum history length, system message included.
func (w Window) Cap() int {
	return 1 + w.MaxTurns
}

// Apply drops the oldest entries at index >= 1 until len(history) <= Cap().
// Index 0 is always kept. Eviction is by message count, so a user message can
// outlive the assistant reply it was paired with and vice versa.
func (w Window) Apply(history []Message) []Message {
	excess := len(history) - w.Cap()
	if excess <= 0 || len(history) == 0 {
		return history
	}
	out := make([]Message, 0, w.Cap())
	out = append(out, history[0])
	out = append(out, history[1+excess:]...)
	return out
}
