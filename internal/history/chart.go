package history

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/gideon/internal/telemetry/tracing"
)

// ErrInsufficientData is returned when fewer than two weight measurements exist.
var ErrInsufficientData = errors.New("not enough weight data for a chart")

type ChartConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Margin int `json:"margin"`
}

func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:  600,
		Height: 300,
		Margin: 20,
	}
}

type WeightPoint struct {
	Date   time.Time
	Weight float64
}

type Point struct {
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

type Segment struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

type Chart struct {
	Config    ChartConfig `json:"config"`
	Points    []Point     `json:"points"`
	Segments  []Segment   `json:"segments"`
	MinWeight float64     `json:"minWeight"`
	MaxWeight float64     `json:"maxWeight"`
}

// ProjectWeights maps weights to drawing coordinates, oldest measurement on the left.
// The lightest weight sits on the bottom margin; the heaviest reaches the top margin
// once the weights span at least 1 kg.
func ProjectWeights(points []WeightPoint, cfg ChartConfig) (*Chart, error) {
	if len(points) < 2 {
		return nil, ErrInsufficientData
	}

	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b WeightPoint) int {
		return a.Date.Compare(b.Date)
	})

	minWeight, maxWeight := sorted[0].Weight, sorted[0].Weight
	for _, p := range sorted[1:] {
		minWeight = min(minWeight, p.Weight)
		maxWeight = max(maxWeight, p.Weight)
	}
	// spreads under 1 kg are drawn on a 1 kg scale
	weightRange := max(maxWeight-minWeight, 1)

	margin := float64(cfg.Margin)
	drawWidth := float64(cfg.Width) - 2*margin
	drawHeight := float64(cfg.Height) - 2*margin
	last := float64(len(sorted) - 1)

	chart := &Chart{
		Config:    cfg,
		Points:    make([]Point, len(sorted)),
		Segments:  make([]Segment, 0, len(sorted)-1),
		MinWeight: minWeight,
		MaxWeight: maxWeight,
	}
	for i, p := range sorted {
		chart.Points[i] = Point{
			X:      float64(i)/last*drawWidth + margin,
			Y:      float64(cfg.Height) - margin - (p.Weight-minWeight)/weightRange*drawHeight,
			Date:   p.Date,
			Weight: p.Weight,
		}
		if i > 0 {
			chart.Segments = append(chart.Segments, Segment{
				From: chart.Points[i-1],
				To:   chart.Points[i],
			})
		}
	}

	return chart, nil
}

type ChartProjector struct {
	progress *Store[ProgressRecord]
	cfg      ChartConfig
}

func NewChartProjector(progress *Store[ProgressRecord], cfg ChartConfig) *ChartProjector {
	return &ChartProjector{
		progress: progress,
		cfg:      cfg,
	}
}

// Project builds the weight chart from the progress records that carry a weight.
func (p *ChartProjector) Project(ctx context.Context) (_ *Chart, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "chart.history.project")
	defer func() {
		if errors.Is(err, ErrInsufficientData) {
			span.End()
			return
		}
		tracing.EndSpanWithErrCheck(span, err)
	}()

	records, err := p.progress.List(ctx)
	if err != nil {
		return nil, err
	}

	weights := make([]WeightPoint, 0, len(records))
	for _, r := range records {
		if r.Weight == nil {
			continue
		}
		weights = append(weights, WeightPoint{Date: r.Date, Weight: *r.Weight})
	}
	span.SetAttributes(attribute.Int("points", len(weights)))

	return ProjectWeights(weights, p.cfg)
}
