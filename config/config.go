// Package config loads agent configuration from a YAML file or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hagglerbot/haggler/internal/services/scorer"
	"github.com/hagglerbot/haggler/internal/services/strategy"
)

const (
	StrategyBalanced = "balanced"
	StrategyCautious = "cautious"

	PricingMultiplicative = "multiplicative"
	PricingAdditive       = "additive"
)

const (
	defaultServer       = "http://128.114.63.97/index.php/service/"
	defaultStrategy     = StrategyCautious
	defaultPricing      = PricingAdditive
	defaultPollInterval = 10 * time.Second
	defaultWebAddr      = ":8077"
	defaultWalDir       = "./wal/actions"
)

// Config holds everything the agent needs to start a trading session.
type Config struct {
	Server       string
	Token        string
	Strategy     string
	Pricing      string
	PollInterval time.Duration
	WebAddr      string
	WalDir       string
	// Setup requests the interactive configuration wizard instead of trading.
	Setup bool
}

type fileConfig struct {
	Server       string        `yaml:"server"`
	Token        string        `yaml:"token"`
	Strategy     string        `yaml:"strategy,omitempty"`
	Pricing      string        `yaml:"pricing,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	WebAddr      string        `yaml:"web_addr,omitempty"`
	WalDir       string        `yaml:"wal_dir,omitempty"`
}

// Get parses CLI flags and, when --config is given, the YAML file it points
// to. Flag values act as defaults for fields the file leaves empty.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	setup := flag.Bool("setup", false, "run the interactive configuration wizard")
	server := flag.String("server", defaultServer, "market service root URL")
	token := flag.String("token", os.Getenv("MARKET_TOKEN"), "group token assigned by the administrator (env MARKET_TOKEN)")
	strategyName := flag.String("strategy", defaultStrategy, "counterparty scoring preset: balanced or cautious")
	pricingName := flag.String("pricing", defaultPricing, "pricing preset: multiplicative or additive")
	pollInterval := flag.Duration("pollinterval", defaultPollInterval, "trading clock poll interval")
	webAddr := flag.String("webaddr", defaultWebAddr, "dashboard listen address")
	walDir := flag.String("waldir", defaultWalDir, "action journal directory")
	flag.Parse()

	cfg := Config{
		Server:       *server,
		Token:        *token,
		Strategy:     *strategyName,
		Pricing:      *pricingName,
		PollInterval: *pollInterval,
		WebAddr:      *webAddr,
		WalDir:       *walDir,
		Setup:        *setup,
	}

	if *configPath != "" {
		if err := cfg.applyFile(*configPath); err != nil {
			return Config{}, err
		}
	}
	if cfg.Setup {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyGenerated reloads the file written by the setup wizard and validates
// the result.
func (c *Config) ApplyGenerated() error {
	if err := c.applyFile("config.gen.yaml"); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.Server != "" {
		c.Server = fc.Server
	}
	if fc.Token != "" {
		c.Token = fc.Token
	}
	if fc.Strategy != "" {
		c.Strategy = fc.Strategy
	}
	if fc.Pricing != "" {
		c.Pricing = fc.Pricing
	}
	if fc.PollInterval > 0 {
		c.PollInterval = fc.PollInterval
	}
	if fc.WebAddr != "" {
		c.WebAddr = fc.WebAddr
	}
	if fc.WalDir != "" {
		c.WalDir = fc.WalDir
	}
	return nil
}

// Validate checks that the configuration can start a session.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server URL is required")
	}
	if c.Token == "" {
		return fmt.Errorf("token is required (flag --token or env MARKET_TOKEN)")
	}
	if _, err := c.Weights(); err != nil {
		return err
	}
	if _, err := c.PricingScheme(); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Weights resolves the scoring preset.
func (c *Config) Weights() (scorer.Weights, error) {
	switch c.Strategy {
	case StrategyBalanced:
		return scorer.BalancedWeights, nil
	case StrategyCautious:
		return scorer.CautiousWeights, nil
	default:
		return scorer.Weights{}, fmt.Errorf("unknown strategy preset %q", c.Strategy)
	}
}

// PricingScheme resolves the pricing preset.
func (c *Config) PricingScheme() (strategy.Pricing, error) {
	switch c.Pricing {
	case PricingMultiplicative:
		return strategy.MultiplicativePricing, nil
	case PricingAdditive:
		return strategy.AdditivePricing, nil
	default:
		return strategy.Pricing{}, fmt.Errorf("unknown pricing preset %q", c.Pricing)
	}
}

// Marshal renders the configuration as YAML, as written by the setup wizard.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(fileConfig{
		Server:       c.Server,
		Token:        c.Token,
		Strategy:     c.Strategy,
		Pricing:      c.Pricing,
		PollInterval: c.PollInterval,
		WebAddr:      c.WebAddr,
		WalDir:       c.WalDir,
	})
}
