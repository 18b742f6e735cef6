// Package strategy implements the per-round decision engine: which products
// to offer, which pending transactions to refer onward, and which inbound
// offers to accept. Every plan is a pure function of the snapshots passed in;
// quota and profitability constraints are enforced here so that invalid
// actions are never submitted.
package strategy

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/hagglerbot/haggler/internal/domain"
	"github.com/hagglerbot/haggler/internal/services/scorer"
)

// RandSource supplies the randomness for referral target selection.
// *math/rand.Rand satisfies it; tests inject a seeded or scripted source.
type RandSource interface {
	Intn(n int) int
}

// Engine plans trading actions from market snapshots.
type Engine struct {
	pricing Pricing
}

// NewEngine creates a decision engine with the given pricing scheme.
func NewEngine(pricing Pricing) (*Engine, error) {
	if err := pricing.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pricing")
	}
	return &Engine{pricing: pricing}, nil
}

// PlanOffers pairs the i-th sellable holding with the i-th ranked party, up
// to maxOfferSend offers. A pairing whose party has a negative score is
// skipped entirely: that party never converted an offer, and the holding is
// held back for a later round rather than wasted on it.
func (e *Engine) PlanOffers(sellable []domain.Holding, ranking []scorer.RankedParty, maxOfferSend int) []domain.OfferAction {
	var offers []domain.OfferAction
	for i := 0; i < len(sellable) && i < maxOfferSend && i < len(ranking); i++ {
		if ranking[i].Score < 0 {
			continue
		}
		holding := sellable[i]
		price := e.pricing.Price(holding.Cost)
		margin := price.Sub(holding.Cost)
		offers = append(offers, domain.OfferAction{
			Recipient:    ranking[i].Party,
			ProductID:    holding.ProductID,
			Price:        price,
			FirstRefFee:  margin.Mul(e.pricing.FirstFeeShare),
			SecondRefFee: margin.Mul(e.pricing.SecondFeeShare),
		})
	}
	return offers
}

// PlanReferrals picks a referral target for every pending inbound
// transaction whose product we do not consume ourselves. The target is drawn
// uniformly from the other parties excluding the sender. The plan keeps
// transaction-iteration order and is NOT truncated here: the per-round
// referral quota is applied at submission time, so over-quota entries at the
// tail are the ones dropped.
func (e *Engine) PlanReferrals(pending []domain.Transaction, consumed map[int]struct{}, others []domain.PartyID, rng RandSource) []domain.ReferralAction {
	var referrals []domain.ReferralAction
	for _, tx := range pending {
		if _, needed := consumed[tx.ProductID]; needed {
			continue
		}
		candidates := make([]domain.PartyID, 0, len(others))
		for _, party := range others {
			if party != tx.From {
				candidates = append(candidates, party)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		referrals = append(referrals, domain.ReferralAction{
			Recipient:     candidates[rng.Intn(len(candidates))],
			TransactionID: tx.ID,
		})
	}
	return referrals
}

// PlanAcceptances accepts pending inbound transactions for products we
// consume, as long as the price stays below our utility. Unprofitable
// entries are skipped without counting against the quota. The accepted count
// is checked after each acceptance, so up to maxOfferRecv+1 entries can make
// it into the plan; this mirrors the market's historical accounting and is
// pinned by a test.
func (e *Engine) PlanAcceptances(pending []domain.Transaction, consumed map[int]decimal.Decimal, maxOfferRecv int) []domain.AcceptAction {
	var accepts []domain.AcceptAction
	for _, tx := range pending {
		utility, needed := consumed[tx.ProductID]
		if !needed {
			continue
		}
		if tx.Price.GreaterThanOrEqual(utility) {
			continue
		}
		accepts = append(accepts, domain.AcceptAction{TransactionID: tx.ID})
		if len(accepts) > maxOfferRecv {
			break
		}
	}
	return accepts
}
