package internal

import (
	"context"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hagglerbot/haggler/internal/clients"
	"github.com/hagglerbot/haggler/internal/domain"
	"github.com/hagglerbot/haggler/internal/services/scorer"
	"github.com/hagglerbot/haggler/internal/services/strategy"
)

// fakeMarket is a scriptable in-memory gateway.
type fakeMarket struct {
	settings  domain.Settings
	clock     domain.Clock
	clockErr  error
	portfolio domain.Portfolio
	outbound  domain.TransactionBook
	inbound   domain.TransactionBook

	offerErr func(domain.OfferAction) error

	offers    []domain.OfferAction
	referrals []domain.ReferralAction
	accepts   []domain.AcceptAction
}

func (f *fakeMarket) Settings() domain.Settings { return f.settings }

func (f *fakeMarket) Clock(ctx context.Context) (domain.Clock, error) {
	return f.clock, f.clockErr
}

func (f *fakeMarket) Portfolio(ctx context.Context) (domain.Portfolio, error) {
	return f.portfolio, nil
}

func (f *fakeMarket) OutTransactions(ctx context.Context) (domain.TransactionBook, error) {
	return f.outbound, nil
}

func (f *fakeMarket) InTransactions(ctx context.Context) (domain.TransactionBook, error) {
	return f.inbound, nil
}

func (f *fakeMarket) SubmitOffer(ctx context.Context, offer domain.OfferAction) error {
	if f.offerErr != nil {
		if err := f.offerErr(offer); err != nil {
			return err
		}
	}
	f.offers = append(f.offers, offer)
	return nil
}

func (f *fakeMarket) SubmitReferral(ctx context.Context, referral domain.ReferralAction) error {
	f.referrals = append(f.referrals, referral)
	return nil
}

func (f *fakeMarket) SubmitAcceptance(ctx context.Context, accept domain.AcceptAction) error {
	f.accepts = append(f.accepts, accept)
	return nil
}

func (f *fakeMarket) Profit(ctx context.Context) (decimal.Decimal, error) {
	return f.settings.Profit, nil
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		settings: domain.Settings{
			GroupID:      1,
			NumGroups:    4,
			NumProducts:  12,
			MaxOfferSend: 5,
			MaxRefSend:   2,
			MaxOfferRecv: 3,
		},
		clock: domain.Clock{Phase: domain.PhaseOffer, Period: 1},
		portfolio: domain.Portfolio{
			Sellable: []domain.Holding{
				{ProductID: 1, Cost: decimal.NewFromInt(10)},
				{ProductID: 2, Cost: decimal.NewFromInt(20)},
			},
		},
		// one converted offer so the streak stays closed by default
		outbound: domain.TransactionBook{
			Offers: domain.StatusBuckets{
				Purchased: []domain.Transaction{{ID: 1, To: 2, Status: domain.TxPurchased}},
			},
		},
	}
}

func newTestAgent(t *testing.T, market *fakeMarket) *Agent {
	t.Helper()
	engine, err := strategy.NewEngine(strategy.AdditivePricing)
	require.NoError(t, err)
	return NewAgent(market, scorer.New(scorer.CautiousWeights), engine,
		nil, nil, 0, rand.New(rand.NewSource(42)))
}

func TestStepOfferPhaseRunsOnce(t *testing.T) {
	market := newFakeMarket()
	agent := newTestAgent(t, market)

	require.NoError(t, agent.step(context.Background()))
	assert.Len(t, market.offers, 2)
	assert.True(t, agent.snapshotState().OfferRoundDone)
	assert.False(t, agent.snapshotState().AcceptRoundDone)

	// same phase occurrence: no duplicate submissions
	require.NoError(t, agent.step(context.Background()))
	assert.Len(t, market.offers, 2)
}

func TestStepPhaseAlternationClearsFlags(t *testing.T) {
	market := newFakeMarket()
	market.inbound = domain.TransactionBook{
		Offers: domain.StatusBuckets{
			Pending: []domain.Transaction{{ID: 30, ProductID: 9, Price: decimal.NewFromInt(5), From: 2}},
		},
	}
	market.portfolio.Consumed = []domain.Consumable{{ProductID: 9, Utility: decimal.NewFromInt(50)}}
	agent := newTestAgent(t, market)

	require.NoError(t, agent.step(context.Background()))
	require.True(t, agent.snapshotState().OfferRoundDone)

	market.clock = domain.Clock{Phase: domain.PhaseAccept, Period: 1}
	require.NoError(t, agent.step(context.Background()))
	assert.Len(t, market.accepts, 1)
	assert.True(t, agent.snapshotState().AcceptRoundDone)
	assert.False(t, agent.snapshotState().OfferRoundDone)

	// next offer phase occurrence runs again
	market.clock = domain.Clock{Phase: domain.PhaseOffer, Period: 2}
	require.NoError(t, agent.step(context.Background()))
	assert.Len(t, market.offers, 4)
	assert.False(t, agent.snapshotState().AcceptRoundDone)
}

func TestStepTransportErrorAbandonsCycleOnly(t *testing.T) {
	market := newFakeMarket()
	market.clockErr = errors.New("connection refused")
	agent := newTestAgent(t, market)

	err := agent.step(context.Background())
	require.Error(t, err)
	assert.Empty(t, market.offers)
	assert.False(t, agent.snapshotState().OfferRoundDone)

	// next poll recovers
	market.clockErr = nil
	require.NoError(t, agent.step(context.Background()))
	assert.Len(t, market.offers, 2)
}

func TestOfferRejectionDoesNotAbortBatch(t *testing.T) {
	market := newFakeMarket()
	market.offerErr = func(offer domain.OfferAction) error {
		if offer.ProductID == 1 {
			return &clients.RejectedError{Service: "offerProduct", Message: "not sellable"}
		}
		return nil
	}
	agent := newTestAgent(t, market)

	require.NoError(t, agent.step(context.Background()))
	require.Len(t, market.offers, 1)
	assert.Equal(t, 2, market.offers[0].ProductID)
	assert.True(t, agent.snapshotState().OfferRoundDone)
}

func TestNoResponseCircuitBreaker(t *testing.T) {
	market := newFakeMarket()
	market.outbound = domain.TransactionBook{} // nothing ever converted
	agent := newTestAgent(t, market)

	// first zero-outcome offer round: streak 1, offers still go out
	require.NoError(t, agent.step(context.Background()))
	assert.Equal(t, 1, agent.snapshotState().NoResponseStreak)
	assert.Len(t, market.offers, 2)

	// second zero-outcome round: streak 2, circuit breaker opens
	market.clock.Period = 2
	agent.mu.Lock()
	agent.state.OfferRoundDone = false
	agent.mu.Unlock()
	require.NoError(t, agent.step(context.Background()))
	assert.Equal(t, 2, agent.snapshotState().NoResponseStreak)
	assert.Len(t, market.offers, 2, "no new offers while suspended")
	assert.True(t, agent.snapshotState().OffersSuspended())

	// stays suspended while the market stays silent
	market.clock.Period = 3
	agent.mu.Lock()
	agent.state.OfferRoundDone = false
	agent.mu.Unlock()
	require.NoError(t, agent.step(context.Background()))
	assert.Len(t, market.offers, 2)

	// one success resets the streak and reopens offers
	market.outbound = domain.TransactionBook{
		Offers: domain.StatusBuckets{
			Referred: []domain.Transaction{{ID: 9, To: 3, Status: domain.TxReferred}},
		},
	}
	market.clock.Period = 4
	agent.mu.Lock()
	agent.state.OfferRoundDone = false
	agent.mu.Unlock()
	require.NoError(t, agent.step(context.Background()))
	assert.Equal(t, 0, agent.snapshotState().NoResponseStreak)
	assert.Len(t, market.offers, 4)
}

func TestEmptySellableSkipsStreakAccounting(t *testing.T) {
	market := newFakeMarket()
	market.outbound = domain.TransactionBook{}
	market.portfolio.Sellable = nil
	agent := newTestAgent(t, market)

	require.NoError(t, agent.step(context.Background()))
	assert.Empty(t, market.offers)
	assert.Equal(t, 0, agent.snapshotState().NoResponseStreak)
}

func TestReferralQuotaAppliedAtSubmission(t *testing.T) {
	market := newFakeMarket()
	market.inbound = domain.TransactionBook{
		Offers: domain.StatusBuckets{
			Pending: []domain.Transaction{
				{ID: 40, ProductID: 5, From: 2},
				{ID: 41, ProductID: 6, From: 3},
				{ID: 42, ProductID: 7, From: 4},
			},
		},
	}
	agent := newTestAgent(t, market)

	require.NoError(t, agent.step(context.Background()))
	// three referral candidates, MaxRefSend = 2: the tail entry is dropped
	require.Len(t, market.referrals, 2)
	assert.Equal(t, int64(40), market.referrals[0].TransactionID)
	assert.Equal(t, int64(41), market.referrals[1].TransactionID)
	for _, r := range market.referrals {
		assert.NotEqual(t, domain.PartyID(0), r.Recipient)
	}
}

func TestReferralsStillRunWhileOffersHeld(t *testing.T) {
	market := newFakeMarket()
	market.outbound = domain.TransactionBook{}
	market.inbound = domain.TransactionBook{
		Referrals: domain.StatusBuckets{
			Pending: []domain.Transaction{{ID: 50, ProductID: 5, From: 3}},
		},
	}
	agent := newTestAgent(t, market)
	agent.mu.Lock()
	agent.state.NoResponseStreak = 2
	agent.mu.Unlock()

	require.NoError(t, agent.step(context.Background()))
	assert.Empty(t, market.offers)
	assert.Len(t, market.referrals, 1)
}

func TestAcceptRoundRespectsUtilityBound(t *testing.T) {
	market := newFakeMarket()
	market.clock = domain.Clock{Phase: domain.PhaseAccept, Period: 1}
	market.portfolio.Consumed = []domain.Consumable{{ProductID: 9, Utility: decimal.NewFromInt(12)}}
	market.inbound = domain.TransactionBook{
		Offers: domain.StatusBuckets{
			Pending: []domain.Transaction{
				{ID: 5, ProductID: 9, Price: decimal.NewFromInt(15)}, // 15 >= 12: unprofitable
				{ID: 6, ProductID: 9, Price: decimal.NewFromInt(8)},
			},
		},
	}
	agent := newTestAgent(t, market)

	require.NoError(t, agent.step(context.Background()))
	require.Len(t, market.accepts, 1)
	assert.Equal(t, int64(6), market.accepts[0].TransactionID)
}

func TestStatusSnapshot(t *testing.T) {
	market := newFakeMarket()
	market.settings.Profit = decimal.NewFromInt(7)
	market.clock = domain.Clock{Phase: domain.PhaseOffer, Period: 9}
	agent := newTestAgent(t, market)

	require.NoError(t, agent.step(context.Background()))
	status := agent.Status()
	assert.Equal(t, domain.PartyID(1), status.GroupID)
	assert.Equal(t, 9, status.Period)
	assert.Equal(t, "offer", status.Phase)
	assert.True(t, status.Profit.Equal(decimal.NewFromInt(7)))
}

func TestStateObserveOfferOutcomes(t *testing.T) {
	var s State
	s.ObserveOfferOutcomes(0)
	s.ObserveOfferOutcomes(0)
	assert.Equal(t, 2, s.NoResponseStreak)
	assert.True(t, s.OffersSuspended())
	s.ObserveOfferOutcomes(3)
	assert.Equal(t, 0, s.NoResponseStreak)
	assert.False(t, s.OffersSuspended())
}
