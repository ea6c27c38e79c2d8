package tasks

// Placement says where a task falls relative to a query window.
type Placement int

const (
	// Excluded tasks are terminal, or deadlined after the window.
	Excluded Placement = iota
	// InRange tasks are active with a deadline inside [start, end].
	InRange
	// CarryOver tasks are still open but their deadline precedes start.
	CarryOver
)

func (p Placement) String() string {
	switch p {
	case InRange:
		return "in-range"
	case CarryOver:
		return "carry-over"
	default:
		return "excluded"
	}
}

// Place classifies a task against the inclusive window [start, end].
// Overdue open work is carried over regardless of the window; work due after
// end is never surfaced.
func Place(t *Task, start, end int64) Placement {
	if t.Status.IsTerminal() {
		return Excluded
	}
	switch {
	case t.Deadline >= start && t.Deadline <= end:
		return InRange
	case t.Deadline < start:
		return CarryOver
	default:
		return Excluded
	}
}

// InWindow reports whether a task belongs in the queue for [start, end].
func InWindow(t *Task, start, end int64) bool {
	return Place(t, start, end) != Excluded
}
