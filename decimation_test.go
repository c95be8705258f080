package lttbplot

import (
	"math"
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func intPtr(v int) *int {
	return &v
}

// sinePoints returns n points of a noisy sine, one per second.
func sinePoints(n int) []Point {
	points := make([]Point, n)
	r := NewSeededRand(DefaultSeed)
	for i := range points {
		points[i] = Point{
			X: int64(i) * 1000,
			Y: math.Sin(float64(i)/50) + r.Range(-0.1, 0.1),
		}
	}
	return points
}

func TestDecimateNoop(t *testing.T) {
	points := sinePoints(1000)

	tests := []struct {
		name    string
		points  []Point
		options DecimationOptions
		width   int
	}{
		{
			name:    "disabled",
			points:  points,
			options: DecimationOptions{Enabled: false, Algorithm: AlgorithmLTTB},
			width:   10,
		},
		{
			name:    "fewer than three points",
			points:  points[:2],
			options: LTTBOptions(1),
			width:   0,
		},
		{
			name:    "below default threshold",
			points:  points,
			options: DefaultDecimationOptions(),
			width:   250,
		},
		{
			name:    "below explicit threshold",
			points:  points,
			options: DecimationOptions{Enabled: true, Algorithm: AlgorithmLTTB, Threshold: intPtr(1000)},
			width:   10,
		},
		{
			name:    "samples exceed points",
			points:  points,
			options: LTTBOptions(5000),
			width:   10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decimate(tt.points, tt.options, tt.width)
			if err != nil {
				t.Fatalf("Decimate() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.points) {
				t.Fatalf("Decimate() changed the points: got %d points, want %d", len(got), len(tt.points))
			}
		})
	}
}

func TestDecimateErrors(t *testing.T) {
	points := sinePoints(100)

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := Decimate(points, DecimationOptions{Enabled: true, Algorithm: "bogus"}, 10)
		if !errors.Is(err, ErrUnsupportedAlgorithm) {
			t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
		}
	})

	t.Run("no width", func(t *testing.T) {
		_, err := Decimate(points, DefaultDecimationOptions(), 0)
		if err == nil {
			t.Fatal("expected an error for a zero width")
		}
	})
}

func TestLTTB(t *testing.T) {
	points := sinePoints(10000)
	original := append([]Point(nil), points...)

	tests := []struct {
		name    string
		options DecimationOptions
		width   int
		want    int
	}{
		{"explicit samples", LTTBOptions(500), 100, 500},
		{"samples default to width", DefaultDecimationOptions(), 300, 300},
		{"two samples", LTTBOptions(2), 100, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decimate(points, tt.options, tt.width)
			if err != nil {
				t.Fatalf("Decimate() error = %v", err)
			}

			if len(got) != tt.want {
				t.Fatalf("len(Decimate()) = %d, want %d", len(got), tt.want)
			}

			if got[0] != points[0] || got[len(got)-1] != points[len(points)-1] {
				t.Fatal("first and last points must be kept")
			}

			// Every point is an original point, in order.
			j := 0
			for i, p := range got {
				for j < len(points) && points[j] != p {
					j++
				}
				if j == len(points) {
					t.Fatalf("point %d %v is not an original point in order", i, p)
				}
			}
		})
	}

	if !reflect.DeepEqual(points, original) {
		t.Fatal("Decimate() modified its input")
	}
}

func TestLTTBKeepsSpike(t *testing.T) {
	points := make([]Point, 1000)
	for i := range points {
		points[i] = Point{X: int64(i), Y: 0}
	}
	points[437].Y = 100

	got, err := Decimate(points, LTTBOptions(20), 10)
	if err != nil {
		t.Fatalf("Decimate() error = %v", err)
	}

	for _, p := range got {
		if p == points[437] {
			return
		}
	}
	t.Fatal("the spike was dropped")
}

func TestMinMax(t *testing.T) {
	points := sinePoints(10000)
	points[1234].Y = 50
	points[8765].Y = -50

	width := 20
	options := DecimationOptions{Enabled: true, Algorithm: AlgorithmMinMax}

	got, err := Decimate(points, options, width)
	if err != nil {
		t.Fatalf("Decimate() error = %v", err)
	}

	// At most first, min, max and last of each of the width+1 columns.
	if len(got) > 4*(width+1) {
		t.Fatalf("len(Decimate()) = %d, want at most %d", len(got), 4*(width+1))
	}

	if got[0] != points[0] {
		t.Errorf("first point = %v, want %v", got[0], points[0])
	}
	if got[len(got)-1] != points[len(points)-1] {
		t.Errorf("last point = %v, want %v", got[len(got)-1], points[len(points)-1])
	}

	var minY, maxY float64
	for i, p := range got {
		minY = Min(minY, p.Y)
		maxY = Max(maxY, p.Y)
		if i > 0 && p.X < got[i-1].X {
			t.Fatalf("point %d goes back in time", i)
		}
	}

	if minY != -50 || maxY != 50 {
		t.Fatalf("extremes = [%v, %v], want [-50, 50]", minY, maxY)
	}
}

func TestMinMaxSameX(t *testing.T) {
	points := []Point{{X: 5, Y: 1}, {X: 5, Y: 3}, {X: 5, Y: -2}, {X: 5, Y: 0}}
	options := DecimationOptions{Enabled: true, Algorithm: AlgorithmMinMax, Threshold: intPtr(1)}

	got, err := Decimate(points, options, 10)
	if err != nil {
		t.Fatalf("Decimate() error = %v", err)
	}

	want := []Point{{X: 5, Y: 1}, {X: 5, Y: 3}, {X: 5, Y: -2}, {X: 5, Y: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Decimate() = %v, want %v", got, want)
	}
}

func TestDecimateDataset(t *testing.T) {
	styles := DefaultSeriesStyles()
	dataset := []Series{
		{SeriesStyle: styles[0], Data: sinePoints(5000)},
		{SeriesStyle: styles[1], Data: sinePoints(10)},
	}

	got, err := DecimateDataset(dataset, LTTBOptions(100), 50)
	if err != nil {
		t.Fatalf("DecimateDataset() error = %v", err)
	}

	if len(got[0].Data) != 100 {
		t.Errorf("series 0 has %d points, want 100", len(got[0].Data))
	}
	if len(got[1].Data) != 10 {
		t.Errorf("series 1 has %d points, want 10", len(got[1].Data))
	}
	for i := range got {
		if got[i].SeriesStyle != dataset[i].SeriesStyle {
			t.Errorf("series %d style = %+v, want %+v", i, got[i].SeriesStyle, dataset[i].SeriesStyle)
		}
	}

	_, err = DecimateDataset(dataset, DecimationOptions{Enabled: true, Algorithm: "bogus"}, 50)
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestDecimationOptionsClone(t *testing.T) {
	options := DecimationOptions{Enabled: true, Algorithm: AlgorithmLTTB, Samples: intPtr(10), Threshold: intPtr(20)}
	clone := options.Clone()

	*clone.Samples = 1
	*clone.Threshold = 2

	if *options.Samples != 10 || *options.Threshold != 20 {
		t.Fatalf("Clone() shares pointers: %d, %d", *options.Samples, *options.Threshold)
	}

	if empty := DefaultDecimationOptions().Clone(); empty.Samples != nil || empty.Threshold != nil {
		t.Fatalf("Clone() of unset options = %+v", empty)
	}
}
