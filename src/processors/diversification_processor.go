package processors

import (
	"math"
	"sort"
	"time"

	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/utils"
)

type DiversificationProcessor struct{}

func NewDiversificationProcessor() *DiversificationProcessor {
	return &DiversificationProcessor{}
}

// Compute breaks market value down by classification and scores the
// portfolio's concentration. classifications maps symbol to its buckets;
// symbols missing from the map fall into "Unknown". avgCorrelation is the
// mean pairwise correlation from the risk analytics.
func (p *DiversificationProcessor) Compute(portfolioID string, positions []models.Position, classifications map[string]models.Classification, avgCorrelation float64) (*models.DiversificationAnalysis, error) {
	totalValue := 0.0
	for _, pos := range positions {
		totalValue += pos.MarketValue
	}
	if totalValue == 0 {
		return nil, models.ErrEmptyPortfolio
	}

	sectors := make(map[string]float64)
	assetClasses := make(map[string]float64)
	regions := make(map[string]float64)
	values := make([]float64, 0, len(positions))
	herfindahl := 0.0

	for _, pos := range positions {
		weight := pos.MarketValue / totalValue
		herfindahl += weight * weight
		values = append(values, pos.MarketValue)

		class, ok := classifications[pos.Symbol]
		if !ok {
			class = models.Classification{Sector: "Unknown", AssetClass: "Unknown", Region: "Unknown"}
		}
		sectors[bucket(class.Sector)] += weight * 100
		assetClasses[bucket(class.AssetClass)] += weight * 100
		regions[bucket(class.Region)] += weight * 100
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	top10 := 0.0
	for i := 0; i < utils.MinInt(10, len(values)); i++ {
		top10 += values[i]
	}
	top10Percentage := top10 / totalValue * 100

	score := diversificationScore(len(positions), herfindahl, avgCorrelation)

	return &models.DiversificationAnalysis{
		PortfolioID:          portfolioID,
		TotalValue:           totalValue,
		PositionCount:        len(positions),
		SectorAllocation:     sectors,
		AssetClassAllocation: assetClasses,
		RegionAllocation:     regions,
		Top10Percentage:      top10Percentage,
		HerfindahlIndex:      herfindahl,
		AverageCorrelation:   avgCorrelation,
		DiversificationScore: score,
		CalculatedAt:         time.Now().UTC(),
	}, nil
}

// diversificationScore is the unweighted mean of three 0-100 sub-scores:
// position count, concentration and average pairwise correlation. It is a
// heuristic blend preserved as-is for compatibility, not a validated index.
func diversificationScore(positionCount int, herfindahl, avgCorrelation float64) float64 {
	countScore := math.Min(100, float64(positionCount)*10)
	concentrationScore := math.Max(0, 100-herfindahl*100)
	correlationScore := math.Max(0, 100-math.Abs(avgCorrelation)*100)
	return (countScore + concentrationScore + correlationScore) / 3
}

func bucket(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}
