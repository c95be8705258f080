package lttbplot

import (
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Constants of the linear congruential generator. These are the classic
// 9301/49297/233280 constants, which give a period of 233280.
const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280

	DefaultSeed = 10
)

// SeededRand is a tiny deterministic generator. Every instance carries its own
// state so two generators never interfere with each other.
type SeededRand struct {
	seed int64
}

func NewSeededRand(seed int64) *SeededRand {
	return &SeededRand{seed: seed}
}

// Float64 advances the state and returns a value in [0, 1).
func (r *SeededRand) Float64() float64 {
	r.seed = (r.seed*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(r.seed) / lcgModulus
}

// Range returns a value in [min, max).
func (r *SeededRand) Range(min, max float64) float64 {
	return min + r.Float64()*(max-min)
}

// Seed returns the current state. Useful to resume a sequence.
func (r *SeededRand) Seed() int64 {
	return r.seed
}

// AmbientSource is the source used to pick the magnitude range and the sign of
// each point. *rand.Rand satisfies it.
type AmbientSource interface {
	Float64() float64
}

// NewAmbientSource returns a time seeded source, which makes output differ on
// every run. Pass a fixed seed with rand.New(rand.NewSource(n)) to get fully
// reproducible datasets.
func NewAmbientSource() AmbientSource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// The epoch of the first generated sample.
var DefaultStart = time.Date(2021, time.April, 1, 0, 0, 0, 0, time.UTC)

type GeneratorOptions struct {
	// Number of points per series.
	NumPoints int

	// The timestamp of the first point.
	Start time.Time

	// Spacing between two consecutive points.
	Interval time.Duration

	// The probability that a point is drawn from the outlier range.
	OutlierProbability float64

	// Magnitudes are drawn uniformly from [0, NormalRange) or, for outliers,
	// from [0, OutlierRange).
	NormalRange  float64
	OutlierRange float64
}

func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		NumPoints:          100000,
		Start:              DefaultStart,
		Interval:           300 * time.Second,
		OutlierProbability: 0.001,
		NormalRange:        10,
		OutlierRange:       90,
	}
}

// Generator builds the synthetic series. It is not safe for concurrent use, as
// both random sources are mutated by every point.
type Generator struct {
	options GeneratorOptions
	seeded  *SeededRand
	ambient AmbientSource

	logger logrus.FieldLogger
}

// Creates a new generator.
//
//   - options: the shape of the generated series.
//   - seeded: the deterministic generator used for magnitudes. Its state keeps
//     advancing across series and across calls.
//   - ambient: the source used for outlier and sign selection. If nil, a time
//     seeded source is used.
func NewGenerator(options GeneratorOptions, seeded *SeededRand, ambient AmbientSource) *Generator {
	if seeded == nil {
		seeded = NewSeededRand(DefaultSeed)
	}

	if ambient == nil {
		ambient = NewAmbientSource()
	}

	return &Generator{
		options: options,
		seeded:  seeded,
		ambient: ambient,
		logger:  logrus.WithField("tag", "Generator"),
	}
}

func (g *Generator) Options() GeneratorOptions {
	return g.options
}

// Points generates one ordered sequence of points.
func (g *Generator) Points() []Point {
	points := make([]Point, g.options.NumPoints)
	start := g.options.Start.UnixMilli()
	interval := g.options.Interval.Milliseconds()

	for i := range points {
		// Order matters: the range is picked before the sign, and both before
		// the magnitude.
		magnitudeRange := g.options.NormalRange
		if g.ambient.Float64() < g.options.OutlierProbability {
			magnitudeRange = g.options.OutlierRange
		}

		sign := 1.0
		if g.ambient.Float64() < 0.5 {
			sign = -1.0
		}

		points[i] = Point{
			X: start + int64(i)*interval,
			Y: sign * g.seeded.Range(0, magnitudeRange),
		}
	}

	return points
}

// Series generates a styled series.
func (g *Generator) Series(style SeriesStyle) Series {
	return Series{
		SeriesStyle: style,
		Data:        g.Points(),
	}
}

// Dataset generates one series per style, in order.
func (g *Generator) Dataset(styles ...SeriesStyle) []Series {
	if len(styles) == 0 {
		styles = DefaultSeriesStyles()
	}

	dataset := make([]Series, len(styles))
	for i, style := range styles {
		dataset[i] = g.Series(style)
	}

	g.logger.WithFields(logrus.Fields{
		"series": len(dataset),
		"points": humanize.Comma(int64(len(dataset) * g.options.NumPoints)),
		"seed":   g.seeded.Seed(),
	}).Info("generated dataset")

	return dataset
}
