// Command haggler runs the round-synchronized trading agent.
// It talks to the market gateway over HTTP, scores counterparties from its
// own transaction history and submits offers, referrals and acceptances
// each market round.
//
// Usage:
//
//	haggler --config config.yaml
//	haggler --setup          (interactive configuration wizard)
//	haggler                  (uses CLI arguments)
//
// The access token can also be provided via the MARKET_TOKEN environment
// variable.
package main

import (
	"context"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/hagglerbot/haggler/config"
	"github.com/hagglerbot/haggler/internal"
	"github.com/hagglerbot/haggler/internal/clients"
	"github.com/hagglerbot/haggler/internal/services/scorer"
	"github.com/hagglerbot/haggler/internal/services/strategy"
	"github.com/hagglerbot/haggler/internal/setup"
	"github.com/hagglerbot/haggler/internal/storage/actions"
	"github.com/hagglerbot/haggler/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Setup {
		if err := setup.RunTUI(cfg); err != nil {
			log.Fatal(err)
		}
		if err := cfg.ApplyGenerated(); err != nil {
			log.Fatal(err)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := clients.NewMarketClient(ctx, cfg.Server, cfg.Token, logger)
	if err != nil {
		logger.Fatal("failed to connect to market gateway", zap.Error(err))
	}

	weights, err := cfg.Weights()
	if err != nil {
		logger.Fatal("invalid strategy preset", zap.Error(err))
	}

	pricing, err := cfg.PricingScheme()
	if err != nil {
		logger.Fatal("invalid pricing preset", zap.Error(err))
	}

	engine, err := strategy.NewEngine(pricing)
	if err != nil {
		logger.Fatal("invalid pricing scheme", zap.Error(err))
	}

	journal, err := actions.NewWALStore(cfg.WalDir)
	if err != nil {
		logger.Fatal("failed to open action journal", zap.Error(err))
	}
	defer journal.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	agent := internal.NewAgent(client, scorer.New(weights), engine, journal, logger, cfg.PollInterval, rng)

	srv := web.NewServer(cfg.WebAddr, journal, agent)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return agent.Run(ctx)
	})
	g.Go(func() error {
		return srv.Start(ctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("agent stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
