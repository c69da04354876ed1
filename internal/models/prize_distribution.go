// internal/models/prize_distribution.go
package models

import (
	"fmt"
	"math"
)

const (
	// FixedPlatformChargePercentage is the platform's share of every prize pool.
	FixedPlatformChargePercentage = 10.0

	// PrizeSumEpsilon is the tolerance used when comparing percentage sums.
	PrizeSumEpsilon = 0.01

	requiredFixedPrizeSum = 100 - FixedPlatformChargePercentage
)

// PrizeDistribution splits the prize pool across the platform and the win categories.
// All values are percentages in [0,100].
type PrizeDistribution struct {
	PlatformChargePercentage   float64 `json:"platformChargePercentage"`
	FullHousePrizePercentage   float64 `json:"fullHousePrizePercentage"`
	FourCornersPrizePercentage float64 `json:"fourCornersPrizePercentage"`
	RowPrizePercentage         float64 `json:"rowPrizePercentage"`
	EarlyFivePrizePercentage   float64 `json:"earlyFivePrizePercentage"`
}

// DefaultPrizeDistribution is the split attached to a game by NewGameWithDefaults.
func DefaultPrizeDistribution() PrizeDistribution {
	return PrizeDistribution{
		PlatformChargePercentage:   20.0,
		FullHousePrizePercentage:   50.0,
		FourCornersPrizePercentage: 7.0,
		RowPrizePercentage:         36.0,
		EarlyFivePrizePercentage:   7.0,
	}
}

// PrizeDistributionError describes why a distribution was rejected.
type PrizeDistributionError struct {
	Field       string
	Sum         float64
	RequiredSum float64
}

func (e *PrizeDistributionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s must be between 0 and 100", e.Field)
	}
	return fmt.Sprintf("prize percentages must sum to %g%% (with %g%% platform charge), got %g%%",
		e.RequiredSum, 100-e.RequiredSum, e.Sum)
}

// ValidatePrizePercentages checks four prize shares against the fixed 10% platform
// charge: it accepts iff they sum to 90 within PrizeSumEpsilon. Range checks are the
// caller's job.
func ValidatePrizePercentages(fullHouse, fourCorners, row, earlyFive float64) bool {
	sum := fullHouse + fourCorners + row + earlyFive
	return math.Abs(sum-requiredFixedPrizeSum) < PrizeSumEpsilon
}

// PrizeSum is the combined share of the four win categories.
func (p PrizeDistribution) PrizeSum() float64 {
	return p.FullHousePrizePercentage +
		p.FourCornersPrizePercentage +
		p.RowPrizePercentage +
		p.EarlyFivePrizePercentage
}

// RequiredPrizeSum is what the prizes must add up to given the stored platform charge.
func (p PrizeDistribution) RequiredPrizeSum() float64 {
	return 100 - p.PlatformChargePercentage
}

// Validate checks every share is a percentage and that prizes plus platform charge
// make up the whole pool.
func (p PrizeDistribution) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"platformChargePercentage", p.PlatformChargePercentage},
		{"fullHousePrizePercentage", p.FullHousePrizePercentage},
		{"fourCornersPrizePercentage", p.FourCornersPrizePercentage},
		{"rowPrizePercentage", p.RowPrizePercentage},
		{"earlyFivePrizePercentage", p.EarlyFivePrizePercentage},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || f.v < 0 || f.v > 100 {
			return &PrizeDistributionError{Field: f.name}
		}
	}

	sum := p.PrizeSum()
	if math.Abs(sum-p.RequiredPrizeSum()) >= PrizeSumEpsilon {
		return &PrizeDistributionError{Sum: sum, RequiredSum: p.RequiredPrizeSum()}
	}
	return nil
}
