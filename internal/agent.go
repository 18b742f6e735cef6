package internal

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hagglerbot/haggler/internal/clients"
	"github.com/hagglerbot/haggler/internal/domain"
	"github.com/hagglerbot/haggler/internal/metrics"
	"github.com/hagglerbot/haggler/internal/services/scorer"
	"github.com/hagglerbot/haggler/internal/services/strategy"
)

// offerHoldThreshold is how many consecutive no-response offer rounds it
// takes to suspend new offers. Prevents burning through inventory on a
// market where nobody answers.
const offerHoldThreshold = 2

const defaultPollInterval = 10 * time.Second

// MarketClient is the gateway the agent trades through.
type MarketClient interface {
	Settings() domain.Settings
	Clock(ctx context.Context) (domain.Clock, error)
	Portfolio(ctx context.Context) (domain.Portfolio, error)
	OutTransactions(ctx context.Context) (domain.TransactionBook, error)
	InTransactions(ctx context.Context) (domain.TransactionBook, error)
	SubmitOffer(ctx context.Context, offer domain.OfferAction) error
	SubmitReferral(ctx context.Context, referral domain.ReferralAction) error
	SubmitAcceptance(ctx context.Context, accept domain.AcceptAction) error
	Profit(ctx context.Context) (decimal.Decimal, error)
}

type actionJournal interface {
	Append(record domain.ActionRecord) error
}

// State is the scheduler's round bookkeeping. Each phase step runs once per
// occurrence of its phase; the done flags flip as the market alternates.
type State struct {
	OfferRoundDone   bool
	AcceptRoundDone  bool
	NoResponseStreak int
}

// ObserveOfferOutcomes updates the no-response streak from the number of
// converted offers seen this round.
func (s *State) ObserveOfferOutcomes(successes int) {
	if successes == 0 {
		s.NoResponseStreak++
		return
	}
	s.NoResponseStreak = 0
}

// OffersSuspended reports whether the circuit breaker is open.
func (s State) OffersSuspended() bool {
	return s.NoResponseStreak >= offerHoldThreshold
}

// Status is a read-only snapshot for the dashboard.
type Status struct {
	GroupID          domain.PartyID  `json:"group_id"`
	Period           int             `json:"period"`
	Phase            string          `json:"phase"`
	NoResponseStreak int             `json:"no_response_streak"`
	OffersSuspended  bool            `json:"offers_suspended"`
	Profit           decimal.Decimal `json:"profit"`
}

// Agent drives the trading loop: it polls the market clock and, once per
// phase occurrence, plans and submits the round's actions. A single decision
// cycle always runs to completion before the next poll.
type Agent struct {
	client       MarketClient
	scorer       *scorer.Scorer
	engine       *strategy.Engine
	journal      actionJournal
	rng          strategy.RandSource
	logger       *zap.Logger
	pollInterval time.Duration

	mu         sync.RWMutex
	state      State
	lastClock  domain.Clock
	lastProfit decimal.Decimal
}

// NewAgent creates the round scheduler. journal may be nil; rng defaults to
// a time-seeded source when nil.
func NewAgent(client MarketClient, sc *scorer.Scorer, engine *strategy.Engine,
	journal actionJournal, logger *zap.Logger, pollInterval time.Duration, rng strategy.RandSource) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Agent{
		client:       client,
		scorer:       sc,
		engine:       engine,
		journal:      journal,
		rng:          rng,
		logger:       logger,
		pollInterval: pollInterval,
		lastProfit:   client.Settings().Profit,
	}
}

// Run executes the polling loop until ctx is cancelled. Transport failures
// abandon the current cycle only; the loop itself never stops on error.
func (a *Agent) Run(ctx context.Context) error {
	settings := a.client.Settings()
	a.logger.Info("starting trading loop",
		zap.Int("group_id", int(settings.GroupID)),
		zap.Int("num_groups", settings.NumGroups),
		zap.Int("num_products", settings.NumProducts),
		zap.Int("max_offer_send", settings.MaxOfferSend),
		zap.Int("max_ref_send", settings.MaxRefSend),
		zap.Int("max_offer_recv", settings.MaxOfferRecv),
		zap.String("profit", settings.Profit.String()),
		zap.Duration("poll_interval", a.pollInterval))

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("context done, stopping trading loop")
			return ctx.Err()
		case <-ticker.C:
			if err := a.step(ctx); err != nil {
				a.logger.Error("poll cycle failed", zap.Error(err))
			}
		}
	}
}

// step runs one poll cycle: read the clock and, if the active phase has not
// been handled for this occurrence yet, execute its decision step.
func (a *Agent) step(ctx context.Context) error {
	clock, err := a.client.Clock(ctx)
	if err != nil {
		return errors.Wrap(err, "query trading clock")
	}
	a.mu.Lock()
	a.lastClock = clock
	a.mu.Unlock()

	switch clock.Phase {
	case domain.PhaseOffer:
		if a.snapshotState().OfferRoundDone {
			return nil
		}
		if err := a.runOfferRound(ctx, clock); err != nil {
			return err
		}
		a.mu.Lock()
		a.state.OfferRoundDone = true
		a.state.AcceptRoundDone = false
		a.mu.Unlock()
	case domain.PhaseAccept:
		if a.snapshotState().AcceptRoundDone {
			return nil
		}
		if err := a.runAcceptRound(ctx, clock); err != nil {
			return err
		}
		a.mu.Lock()
		a.state.AcceptRoundDone = true
		a.state.OfferRoundDone = false
		a.mu.Unlock()
	}

	metrics.ObserveCycle(clock.Phase.String())
	a.refreshProfit(ctx)
	return nil
}

// runOfferRound handles round A: offers first, referrals second. The order
// is load-bearing: streak accounting observes only offer outcomes.
func (a *Agent) runOfferRound(ctx context.Context, clock domain.Clock) error {
	outbound, err := a.client.OutTransactions(ctx)
	if err != nil {
		return errors.Wrap(err, "query outbound transactions")
	}
	inbound, err := a.client.InTransactions(ctx)
	if err != nil {
		return errors.Wrap(err, "query inbound transactions")
	}
	portfolio, err := a.client.Portfolio(ctx)
	if err != nil {
		return errors.Wrap(err, "query portfolio")
	}

	a.submitOffers(ctx, clock, &portfolio, &outbound)
	a.submitReferrals(ctx, clock, &portfolio, &inbound)
	return nil
}

func (a *Agent) submitOffers(ctx context.Context, clock domain.Clock, portfolio *domain.Portfolio, outbound *domain.TransactionBook) {
	if len(portfolio.Sellable) == 0 {
		a.logger.Info("no products left to sell", zap.Int("period", clock.Period))
		return
	}

	settings := a.client.Settings()
	others := settings.OtherGroups()
	ranking := a.scorer.Rank(outbound, others)

	streak := a.observeOfferOutcomes(scorer.SuccessCount(outbound))
	if streak >= offerHoldThreshold {
		a.logger.Warn("holding offers, no responses from the market",
			zap.Int("streak", streak), zap.Int("period", clock.Period))
		metrics.ObserveOfferHold()
		return
	}

	offers := a.engine.PlanOffers(portfolio.Sellable, ranking, settings.MaxOfferSend)
	for _, offer := range offers {
		err := a.client.SubmitOffer(ctx, offer)
		a.recordAction(domain.ActionRecord{
			Kind:      domain.ActionOffer,
			Period:    clock.Period,
			Recipient: offer.Recipient,
			ProductID: offer.ProductID,
			Price:     offer.Price,
		}, err)
	}
}

func (a *Agent) submitReferrals(ctx context.Context, clock domain.Clock, portfolio *domain.Portfolio, inbound *domain.TransactionBook) {
	settings := a.client.Settings()
	pending := inbound.PendingInbound()
	plan := a.engine.PlanReferrals(pending, portfolio.ConsumedIDs(), settings.OtherGroups(), a.rng)

	for i, referral := range plan {
		// quota applies at submission: over-quota tail entries are dropped
		if i >= settings.MaxRefSend {
			a.logger.Debug("referral quota reached",
				zap.Int("planned", len(plan)), zap.Int("submitted", i))
			break
		}
		err := a.client.SubmitReferral(ctx, referral)
		a.recordAction(domain.ActionRecord{
			Kind:          domain.ActionReferral,
			Period:        clock.Period,
			Recipient:     referral.Recipient,
			TransactionID: referral.TransactionID,
		}, err)
	}
}

// runAcceptRound handles round B: accept profitable offers and referrals.
func (a *Agent) runAcceptRound(ctx context.Context, clock domain.Clock) error {
	inbound, err := a.client.InTransactions(ctx)
	if err != nil {
		return errors.Wrap(err, "query inbound transactions")
	}
	portfolio, err := a.client.Portfolio(ctx)
	if err != nil {
		return errors.Wrap(err, "query portfolio")
	}

	settings := a.client.Settings()
	accepts := a.engine.PlanAcceptances(inbound.PendingInbound(), portfolio.ConsumedUtilities(), settings.MaxOfferRecv)
	for _, accept := range accepts {
		err := a.client.SubmitAcceptance(ctx, accept)
		a.recordAction(domain.ActionRecord{
			Kind:          domain.ActionAccept,
			Period:        clock.Period,
			TransactionID: accept.TransactionID,
		}, err)
	}
	return nil
}

// recordAction classifies the submission result, logs it, updates metrics
// and appends it to the journal. A failed sibling never aborts the batch.
func (a *Agent) recordAction(record domain.ActionRecord, err error) {
	record.ID = uuid.NewString()
	record.Time = time.Now().UTC()
	switch {
	case err == nil:
		record.Outcome = "ok"
	case clients.IsRejected(err):
		record.Outcome = "fail"
		record.Message = err.Error()
		a.logger.Warn("action rejected by market",
			zap.String("kind", string(record.Kind)), zap.Error(err))
	default:
		record.Outcome = "error"
		record.Message = err.Error()
		a.logger.Error("action submission failed",
			zap.String("kind", string(record.Kind)), zap.Error(err))
	}

	metrics.ObserveAction(string(record.Kind), record.Outcome)

	if a.journal == nil {
		return
	}
	if jerr := a.journal.Append(record); jerr != nil {
		a.logger.Warn("failed to journal action", zap.Error(jerr))
	}
}

func (a *Agent) observeOfferOutcomes(successes int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.ObserveOfferOutcomes(successes)
	metrics.SetNoResponseStreak(a.state.NoResponseStreak)
	return a.state.NoResponseStreak
}

func (a *Agent) refreshProfit(ctx context.Context) {
	profit, err := a.client.Profit(ctx)
	if err != nil {
		a.logger.Debug("profit refresh failed", zap.Error(err))
		return
	}
	a.mu.Lock()
	a.lastProfit = profit
	a.mu.Unlock()
	f, _ := profit.Float64()
	metrics.SetProfit(f)
}

func (a *Agent) snapshotState() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Status returns a snapshot for the dashboard.
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Status{
		GroupID:          a.client.Settings().GroupID,
		Period:           a.lastClock.Period,
		Phase:            a.lastClock.Phase.String(),
		NoResponseStreak: a.state.NoResponseStreak,
		OffersSuspended:  a.state.OffersSuspended(),
		Profit:           a.lastProfit,
	}
}
