package setup

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/hagglerbot/haggler/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes the answers
// to config.gen.yaml.
func RunTUI(defaults config.Config) error {
	var (
		server          string
		token           string
		strategy        string
		pricing         string
		pollIntervalStr string
		webAddr         string
		walDir          string
		confirm         bool
	)

	// defaults
	server = defaults.Server
	strategy = defaults.Strategy
	pricing = defaults.Pricing
	pollIntervalStr = defaults.PollInterval.String()
	webAddr = defaults.WebAddr
	walDir = defaults.WalDir

	// step 1: welcome
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("HAGGLER CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's get your agent on the market.\n"))

	// gateway
	fmt.Println(stepStyle.Render("STEP 1: GATEWAY"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Market Service URL").
				Description("Root endpoint of the market gateway").
				Value(&server).
				Validate(validateURL),
			huh.NewInput().
				Title("Access Token").
				Description("Credential issued for your group").
				Value(&token).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("token cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// strategy
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HAGGLER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: SCORING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Counterparty scoring preset").
				Options(
					huh.NewOption("Cautious (penalize silent partners)", config.StrategyCautious),
					huh.NewOption("Balanced (give pending offers credit)", config.StrategyBalanced),
				).
				Value(&strategy),
		),
	).Run()
	if err != nil {
		return err
	}

	// pricing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HAGGLER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: PRICING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Offer pricing preset").
				Options(
					huh.NewOption("Additive (cost + flat markup)", config.PricingAdditive),
					huh.NewOption("Multiplicative (cost * factor)", config.PricingMultiplicative),
				).
				Value(&pricing),
		),
	).Run()
	if err != nil {
		return err
	}

	// timing and local services
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HAGGLER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: RUNTIME"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Poll Interval").
				Description("Duration string (e.g. 10s, 30s)").
				Value(&pollIntervalStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("Dashboard Address").
				Description("Listen address for the web dashboard (e.g. :8077)").
				Value(&webAddr),
			huh.NewInput().
				Title("Journal Directory").
				Description("Directory for the action journal").
				Value(&walDir),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirm
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HAGGLER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("REVIEW"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render(
		fmt.Sprintf("server: %s\nstrategy: %s\npricing: %s\npoll interval: %s\ndashboard: %s\njournal: %s\n",
			server, strategy, pricing, pollIntervalStr, webAddr, walDir)))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	pollInterval, _ := time.ParseDuration(pollIntervalStr)

	cfg := config.Config{
		Server:       server,
		Token:        token,
		Strategy:     strategy,
		Pricing:      pricing,
		PollInterval: pollInterval,
		WebAddr:      webAddr,
		WalDir:       walDir,
	}

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting agent...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}
