// Package domain defines core data structures used throughout the trading agent.
package domain

import "github.com/shopspring/decimal"

// PartyID identifies a market participant (one per competing group).
type PartyID int

// Holding is a product the party produces or still has available to sell.
type Holding struct {
	ProductID int             `json:"id"`
	Cost      decimal.Decimal `json:"cost"`
}

// Consumable is a product the party consumes, with its private utility.
type Consumable struct {
	ProductID int             `json:"id"`
	Utility   decimal.Decimal `json:"utility"`
}

// Portfolio is a per-round snapshot of the party's product sets.
// Sellable shrinks on the server side after each successful sale.
type Portfolio struct {
	Sellable []Holding    `json:"sell"`
	Produced []Holding    `json:"produced"`
	Consumed []Consumable `json:"consumed"`
}

// ConsumedUtilities maps consumed product ids to their utilities.
func (p *Portfolio) ConsumedUtilities() map[int]decimal.Decimal {
	utilities := make(map[int]decimal.Decimal, len(p.Consumed))
	for _, c := range p.Consumed {
		utilities[c.ProductID] = c.Utility
	}
	return utilities
}

// ConsumedIDs returns the set of product ids the party consumes.
func (p *Portfolio) ConsumedIDs() map[int]struct{} {
	ids := make(map[int]struct{}, len(p.Consumed))
	for _, c := range p.Consumed {
		ids[c.ProductID] = struct{}{}
	}
	return ids
}
