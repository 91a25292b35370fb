package session

// StrikeThreshold is the number of consecutive wrong answers that locks a
// session.
const StrikeThreshold = 3

// Counters are the per-session answer counters. Streak counts consecutive
// wrong answers; Total counts every wrong answer and never resets.
type Counters struct {
	Streak int
	Total  int
}

// Apply returns the counters after one answer.
func (c Counters) Apply(correct bool) Counters {
	if correct {
		return Counters{Streak: 0, Total: c.Total}
	}
	return Counters{Streak: c.Streak + 1, Total: c.Total + 1}
}

// Escalates reports whether the streak has reached the strike threshold.
func (c Counters) Escalates() bool {
	return c.Streak >= StrikeThreshold
}

// StrikesRemaining is the number of wrong answers left before a lock.
func (c Counters) StrikesRemaining() int {
	return max(StrikeThreshold-c.Streak, 0)
}

// Tally replays a sequence of answer outcomes from fresh counters. It stops
// at the answer that escalates and returns its 1-based position, or 0 when
// the sequence never escalates.
func Tally(outcomes []bool) (Counters, int) {
	var c Counters
	for i, correct := range outcomes {
		c = c.Apply(correct)
		if c.Escalates() {
			return c, i + 1
		}
	}
	return c, 0
}
