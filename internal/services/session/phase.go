package session

// Phase is where a player is in the connect/disconnect lifecycle
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseLoading
	PhaseReady
	PhaseSaving
	PhaseDisconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseSaving:
		return "saving"
	case PhaseDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// live reports whether the player's entry is shown and refreshed
func (p Phase) live() bool {
	return p == PhaseReady || p == PhaseSaving
}
