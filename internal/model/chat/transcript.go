package chat

// Transcript is the chronological list of turns of one browser session.
// Alternation of user and assistant turns is expected but not enforced: a
// failed submission leaves a trailing user turn without an answer.
type Transcript []Turn

// Len returns the number of turns.
func (t Transcript) Len() int {
	return len(t)
}

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	copied := make(Transcript, len(t))
	copy(copied, t)
	return copied
}
