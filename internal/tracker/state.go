package tracker

// State is a key's membership. Unseen is never stored: it is the absence of
// the key from both persisted sets.
type State int

const (
	Unseen State = iota
	Pending
	Seen
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Seen:
		return "seen"
	default:
		return "unseen"
	}
}

// ClearMode selects what the bulk clear operations do with each member.
type ClearMode int

const (
	// ClearDelete drops every member back to Unseen.
	ClearDelete ClearMode = iota
	// ClearMove moves pending members to Seen, or seen members to Pending.
	ClearMove
)

func (m ClearMode) String() string {
	if m == ClearMove {
		return "move"
	}
	return "delete"
}

// ParseClearMode accepts "move" or "delete".
func ParseClearMode(s string) (ClearMode, bool) {
	switch s {
	case "move":
		return ClearMove, true
	case "delete", "":
		return ClearDelete, true
	}
	return ClearDelete, false
}
