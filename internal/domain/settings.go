package domain

import "github.com/shopspring/decimal"

// Settings is the static experiment configuration the market assigns to the
// party at session start. Immutable for the process lifetime.
type Settings struct {
	GroupID      PartyID
	NumGroups    int
	NumProducts  int
	MaxOfferSend int
	MaxRefSend   int
	MaxOfferRecv int
	Profit       decimal.Decimal
}

// OtherGroups lists every party id on the market except our own,
// in ascending order.
func (s *Settings) OtherGroups() []PartyID {
	others := make([]PartyID, 0, s.NumGroups-1)
	for i := 1; i <= s.NumGroups; i++ {
		if PartyID(i) != s.GroupID {
			others = append(others, PartyID(i))
		}
	}
	return others
}
