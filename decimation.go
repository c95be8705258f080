package lttbplot

import (
	"math"

	"github.com/pkg/errors"
)

type DecimationAlgorithm string

const (
	// Largest Triangle Three Buckets. Keeps a fixed number of points that
	// preserve the visual trend of the series.
	AlgorithmLTTB DecimationAlgorithm = "lttb"

	// Keeps up to four points per pixel column: first, min, max and last.
	AlgorithmMinMax DecimationAlgorithm = "min-max"
)

var ErrUnsupportedAlgorithm = errors.New("unsupported decimation algorithm")

// DecimationOptions mirrors the decimation plugin options of the browser
// charting library, so it can be forwarded as-is.
type DecimationOptions struct {
	Enabled   bool                `json:"enabled" cbor:"enabled"`
	Algorithm DecimationAlgorithm `json:"algorithm" cbor:"algorithm"`

	// Number of samples to keep with LTTB. Defaults to the available width.
	Samples *int `json:"samples,omitempty" cbor:"samples,omitempty"`

	// Series with this many points or fewer are not decimated. Defaults to four
	// times the available width.
	Threshold *int `json:"threshold,omitempty" cbor:"threshold,omitempty"`
}

// Clone returns a copy that shares no pointers with o.
func (o DecimationOptions) Clone() DecimationOptions {
	clone := o
	if o.Samples != nil {
		samples := *o.Samples
		clone.Samples = &samples
	}
	if o.Threshold != nil {
		threshold := *o.Threshold
		clone.Threshold = &threshold
	}
	return clone
}

// The decimation state before any control is used.
func DefaultDecimationOptions() DecimationOptions {
	return DecimationOptions{
		Enabled:   true,
		Algorithm: AlgorithmLTTB,
	}
}

// LTTBOptions builds enabled LTTB options with the given sample budget.
func LTTBOptions(samples int) DecimationOptions {
	return DecimationOptions{
		Enabled:   true,
		Algorithm: AlgorithmLTTB,
		Samples:   &samples,
	}
}

func (o DecimationOptions) threshold(availableWidth int) int {
	if o.Threshold != nil && *o.Threshold > 0 {
		return *o.Threshold
	}
	return 4 * availableWidth
}

func (o DecimationOptions) samples(availableWidth int) int {
	if o.Samples != nil && *o.Samples > 0 {
		return *o.Samples
	}
	return availableWidth
}

// Decimate reduces the points according to the options. The input slice is
// never modified. If no decimation applies, the input is returned as is.
//
//   - points: the series data, ordered by X.
//   - options: the decimation options.
//   - availableWidth: the width of the drawable surface in pixels. It is the
//     default sample budget and the number of min-max columns.
func Decimate(points []Point, options DecimationOptions, availableWidth int) ([]Point, error) {
	if !options.Enabled || len(points) < 3 {
		return points, nil
	}

	if availableWidth <= 0 {
		return nil, errors.Errorf("available width must be positive, got %d", availableWidth)
	}

	if len(points) <= options.threshold(availableWidth) {
		return points, nil
	}

	switch options.Algorithm {
	case AlgorithmLTTB:
		return lttb(points, options.samples(availableWidth)), nil
	case AlgorithmMinMax:
		return minMax(points, availableWidth), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %q", options.Algorithm)
	}
}

func lttb(points []Point, samples int) []Point {
	count := len(points)
	if samples >= count {
		return points
	}

	if samples < 3 {
		return []Point{points[0], points[count-1]}
	}

	decimated := make([]Point, 0, samples)
	decimated = append(decimated, points[0])

	// First and last are always kept, the rest is split into samples-2 buckets.
	bucketWidth := float64(count-2) / float64(samples-2)

	a := 0
	for i := 0; i < samples-2; i++ {
		// Average of the next bucket, used as the third vertex.
		avgRangeStart := int(math.Floor(float64(i+1)*bucketWidth)) + 1
		avgRangeEnd := Min(int(math.Floor(float64(i+2)*bucketWidth))+1, count)

		var avgX, avgY float64
		for j := avgRangeStart; j < avgRangeEnd; j++ {
			avgX += float64(points[j].X)
			avgY += points[j].Y
		}
		avgRangeLength := float64(avgRangeEnd - avgRangeStart)
		avgX /= avgRangeLength
		avgY /= avgRangeLength

		rangeStart := int(math.Floor(float64(i)*bucketWidth)) + 1
		rangeEnd := Min(int(math.Floor(float64(i+1)*bucketWidth))+1, count)

		pointAX := float64(points[a].X)
		pointAY := points[a].Y

		maxArea := -1.0
		next := rangeStart
		for j := rangeStart; j < rangeEnd; j++ {
			area := 0.5 * math.Abs((pointAX-avgX)*(points[j].Y-pointAY)-(pointAX-float64(points[j].X))*(avgY-pointAY))
			if area > maxArea {
				maxArea = area
				next = j
			}
		}

		decimated = append(decimated, points[next])
		a = next
	}

	decimated = append(decimated, points[count-1])
	return decimated
}

func minMax(points []Point, availableWidth int) []Point {
	decimated := make([]Point, 0, Min(len(points), 4*availableWidth+1))

	xMin := float64(points[0].X)
	dx := float64(points[len(points)-1].X) - xMin

	column := func(p Point) int {
		if dx == 0 {
			return 0
		}
		return int((float64(p.X) - xMin) / dx * float64(availableWidth))
	}

	var (
		startIndex, minIndex, maxIndex int
		minY, maxY, avgX               float64
		countX                         int
	)

	// Emits the min and max of the column ending at lastIndex at the average
	// x of that column, followed by the last point of the column.
	flush := func(lastIndex int) {
		first := Min(minIndex, maxIndex)
		second := Max(minIndex, maxIndex)
		x := int64(math.Round(avgX))

		if first != startIndex && first != lastIndex {
			decimated = append(decimated, Point{X: x, Y: points[first].Y})
		}
		if second != first && second != startIndex && second != lastIndex {
			decimated = append(decimated, Point{X: x, Y: points[second].Y})
		}
		if lastIndex != startIndex {
			decimated = append(decimated, points[lastIndex])
		}
	}

	prevColumn := -1
	for i, point := range points {
		c := column(point)

		if c == prevColumn {
			if point.Y < minY {
				minY = point.Y
				minIndex = i
			} else if point.Y > maxY {
				maxY = point.Y
				maxIndex = i
			}
			countX++
			avgX += (float64(point.X) - avgX) / float64(countX)
			continue
		}

		if i > 0 {
			flush(i - 1)
		}

		decimated = append(decimated, point)
		prevColumn = c
		startIndex, minIndex, maxIndex = i, i, i
		minY, maxY = point.Y, point.Y
		avgX = float64(point.X)
		countX = 1
	}

	flush(len(points) - 1)

	return decimated
}

// DecimateDataset decimates every series of the dataset. Styles are kept.
func DecimateDataset(dataset []Series, options DecimationOptions, availableWidth int) ([]Series, error) {
	decimated := make([]Series, len(dataset))
	for i, series := range dataset {
		data, err := Decimate(series.Data, options, availableWidth)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decimate series %q", series.Label)
		}

		decimated[i] = Series{
			SeriesStyle: series.SeriesStyle,
			Data:        data,
		}
	}

	return decimated, nil
}
