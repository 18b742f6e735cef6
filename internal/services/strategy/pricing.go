package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Pricing sets the sell price from the production cost and splits the margin
// into the two referral fees. Price = cost*Factor + Markup.
type Pricing struct {
	Factor decimal.Decimal
	Markup decimal.Decimal
	// FirstFeeShare and SecondFeeShare are fractions of the margin paid as
	// first- and second-degree referral fees. FirstFeeShare must be larger.
	FirstFeeShare  decimal.Decimal
	SecondFeeShare decimal.Decimal
}

// MultiplicativePricing marks products up by 10% of cost.
var MultiplicativePricing = Pricing{
	Factor:         decimal.NewFromFloat(1.1),
	Markup:         decimal.Zero,
	FirstFeeShare:  decimal.NewFromFloat(0.2),
	SecondFeeShare: decimal.NewFromFloat(0.1),
}

// AdditivePricing adds a flat margin of 10 on top of cost.
var AdditivePricing = Pricing{
	Factor:         decimal.NewFromInt(1),
	Markup:         decimal.NewFromInt(10),
	FirstFeeShare:  decimal.NewFromFloat(0.2),
	SecondFeeShare: decimal.NewFromFloat(0.1),
}

// Validate checks that the pricing never sells below cost and that the fee
// split keeps the first-degree fee above the second-degree one.
func (p Pricing) Validate() error {
	one := decimal.NewFromInt(1)
	if p.Factor.LessThan(one) {
		return fmt.Errorf("price factor must be >= 1, got %s", p.Factor)
	}
	if p.Markup.IsNegative() {
		return fmt.Errorf("markup must be non-negative, got %s", p.Markup)
	}
	if p.Factor.Equal(one) && p.Markup.IsZero() {
		return fmt.Errorf("pricing yields zero margin")
	}
	if !p.FirstFeeShare.GreaterThan(p.SecondFeeShare) {
		return fmt.Errorf("first referral fee share %s must exceed second %s",
			p.FirstFeeShare, p.SecondFeeShare)
	}
	return nil
}

// Price computes the sell price for a given production cost.
func (p Pricing) Price(cost decimal.Decimal) decimal.Decimal {
	return cost.Mul(p.Factor).Add(p.Markup)
}
