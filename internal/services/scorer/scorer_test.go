package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hagglerbot/haggler/internal/domain"
)

func tx(to domain.PartyID) domain.Transaction {
	return domain.Transaction{To: to}
}

func TestRank(t *testing.T) {
	tests := []struct {
		name     string
		weights  Weights
		outbound domain.TransactionBook
		others   []domain.PartyID
		expected []RankedParty
	}{
		{
			name:     "no history keeps zero scores, ascending id order",
			weights:  BalancedWeights,
			outbound: domain.TransactionBook{},
			others:   []domain.PartyID{4, 2, 3},
			expected: []RankedParty{{2, 0}, {3, 0}, {4, 0}},
		},
		{
			name:    "purchased above pending above expired",
			weights: CautiousWeights,
			outbound: domain.TransactionBook{
				Offers: domain.StatusBuckets{
					Purchased: []domain.Transaction{tx(2)},
					Expired:   []domain.Transaction{tx(3)},
					Pending:   []domain.Transaction{tx(4)},
				},
			},
			others:   []domain.PartyID{2, 3, 4},
			expected: []RankedParty{{2, 1}, {4, -0.5}, {3, -1}},
		},
		{
			name:    "pending counts positive under balanced weights",
			weights: BalancedWeights,
			outbound: domain.TransactionBook{
				Offers: domain.StatusBuckets{
					Pending: []domain.Transaction{tx(3), tx(3)},
					Expired: []domain.Transaction{tx(2)},
				},
			},
			others:   []domain.PartyID{2, 3},
			expected: []RankedParty{{3, 0.4}, {2, -1}},
		},
		{
			name:    "referrals are excluded from scoring",
			weights: BalancedWeights,
			outbound: domain.TransactionBook{
				Referrals: domain.StatusBuckets{
					Purchased: []domain.Transaction{tx(2), tx(2)},
				},
			},
			others:   []domain.PartyID{2, 3},
			expected: []RankedParty{{2, 0}, {3, 0}},
		},
		{
			name:    "repeated outcomes accumulate",
			weights: BalancedWeights,
			outbound: domain.TransactionBook{
				Offers: domain.StatusBuckets{
					Purchased: []domain.Transaction{tx(2), tx(2)},
					Referred:  []domain.Transaction{tx(3)},
				},
			},
			others:   []domain.PartyID{2, 3},
			expected: []RankedParty{{2, 2}, {3, 0.5}},
		},
		{
			name:    "unknown recipient is ignored",
			weights: BalancedWeights,
			outbound: domain.TransactionBook{
				Offers: domain.StatusBuckets{
					Purchased: []domain.Transaction{tx(9)},
				},
			},
			others:   []domain.PartyID{2, 3},
			expected: []RankedParty{{2, 0}, {3, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranking := New(tt.weights).Rank(&tt.outbound, tt.others)
			require.Len(t, ranking, len(tt.expected))
			for i, want := range tt.expected {
				assert.Equal(t, want.Party, ranking[i].Party, "position %d", i)
				assert.InDelta(t, want.Score, ranking[i].Score, 1e-9, "position %d", i)
			}
		})
	}
}

func TestRankTieBreakDeterministic(t *testing.T) {
	outbound := domain.TransactionBook{
		Offers: domain.StatusBuckets{
			Purchased: []domain.Transaction{tx(5), tx(3)},
		},
	}
	// both 3 and 5 score 1.0, both 2 and 4 score 0: ties resolve by id.
	for i := 0; i < 10; i++ {
		ranking := New(BalancedWeights).Rank(&outbound, []domain.PartyID{5, 4, 3, 2})
		require.Len(t, ranking, 4)
		assert.Equal(t, domain.PartyID(3), ranking[0].Party)
		assert.Equal(t, domain.PartyID(5), ranking[1].Party)
		assert.Equal(t, domain.PartyID(2), ranking[2].Party)
		assert.Equal(t, domain.PartyID(4), ranking[3].Party)
	}
}

func TestSuccessCount(t *testing.T) {
	outbound := domain.TransactionBook{
		Offers: domain.StatusBuckets{
			Pending:   []domain.Transaction{tx(2)},
			Purchased: []domain.Transaction{tx(3), tx(4)},
			Referred:  []domain.Transaction{tx(5)},
		},
		Referrals: domain.StatusBuckets{
			// conversions of our referrals do not count as offer successes
			Purchased: []domain.Transaction{tx(2)},
		},
	}
	assert.Equal(t, 3, SuccessCount(&outbound))
	assert.Equal(t, 0, SuccessCount(&domain.TransactionBook{}))
}
