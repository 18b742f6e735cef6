// Package scorer ranks counterparties by the historical outcomes of the
// offers we sent them.
package scorer

import (
	"sort"

	"github.com/hagglerbot/haggler/internal/domain"
)

// Weights maps each outbound offer status to its score contribution.
// Referral transactions never contribute to scoring.
type Weights struct {
	Pending   float64
	Expired   float64
	Purchased float64
	Referred  float64
}

// BalancedWeights treats an unanswered pending offer as a mild positive:
// the recipient may still convert it.
var BalancedWeights = Weights{Pending: 0.2, Expired: -1, Purchased: 1, Referred: 0.5}

// CautiousWeights penalizes pending offers: capital locked in an offer that
// nobody answered is counted against the recipient.
var CautiousWeights = Weights{Pending: -0.5, Expired: -1, Purchased: 1, Referred: 0.5}

// RankedParty is one entry of a counterparty ranking.
type RankedParty struct {
	Party domain.PartyID
	Score float64
}

// Scorer computes counterparty rankings from outbound transaction history.
type Scorer struct {
	weights Weights
}

// New creates a Scorer with the given weight table.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Rank scores every other party from the outbound offer history and returns
// them ordered by descending score, ties broken by ascending party id.
// Parties with no history keep a zero score. The ranking is recomputed fresh
// from the snapshot; nothing is carried between calls.
func (s *Scorer) Rank(outbound *domain.TransactionBook, others []domain.PartyID) []RankedParty {
	scores := make(map[domain.PartyID]float64, len(others))
	for _, party := range others {
		scores[party] = 0
	}

	add := func(txs []domain.Transaction, weight float64) {
		for _, tx := range txs {
			if _, known := scores[tx.To]; !known {
				continue
			}
			scores[tx.To] += weight
		}
	}
	add(outbound.Offers.Pending, s.weights.Pending)
	add(outbound.Offers.Expired, s.weights.Expired)
	add(outbound.Offers.Purchased, s.weights.Purchased)
	add(outbound.Offers.Referred, s.weights.Referred)

	ranking := make([]RankedParty, 0, len(others))
	for _, party := range others {
		ranking = append(ranking, RankedParty{Party: party, Score: scores[party]})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return ranking[i].Party < ranking[j].Party
	})
	return ranking
}

// SuccessCount reports how many outbound offers converted (purchased or
// referred by the recipient). Used for no-response streak accounting.
func SuccessCount(outbound *domain.TransactionBook) int {
	return len(outbound.Offers.Purchased) + len(outbound.Offers.Referred)
}
