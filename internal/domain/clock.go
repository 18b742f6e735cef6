package domain

// Phase is the half of the trading round currently open on the market.
type Phase int

const (
	// PhaseOffer is round A: offering and referring products is allowed.
	PhaseOffer Phase = iota
	// PhaseAccept is round B: accepting offers and referrals is allowed.
	PhaseAccept
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseOffer:
		return "offer"
	case PhaseAccept:
		return "accept"
	default:
		return "unknown"
	}
}

// Clock is a snapshot of the market's trading clock.
type Clock struct {
	Phase  Phase
	Period int
}
