package lttbplot

import "time"

// A single sample. X is a unix timestamp in milliseconds.
type Point struct {
	X int64   `json:"x" cbor:"x"`
	Y float64 `json:"y" cbor:"y"`
}

func (p Point) Time() time.Time {
	return time.UnixMilli(p.X).UTC()
}

// SeriesStyle holds how a series is drawn. The JSON names match the dataset
// options of the browser charting library.
type SeriesStyle struct {
	Label           string `json:"label" cbor:"label"`
	BorderColor     string `json:"borderColor" cbor:"borderColor"`
	BackgroundColor string `json:"backgroundColor" cbor:"backgroundColor"`
	BorderWidth     int    `json:"borderWidth" cbor:"borderWidth"`
}

type Series struct {
	SeriesStyle
	Data []Point `json:"data" cbor:"data"`
}

func DefaultSeriesStyles() []SeriesStyle {
	return []SeriesStyle{
		{
			Label:           "Large Dataset Latitude 1",
			BorderColor:     "rgb(255, 99, 132)",
			BackgroundColor: "rgba(255, 99, 132, 0.5)",
			BorderWidth:     3,
		},
		{
			Label:           "Large Dataset Latitude 2",
			BorderColor:     "rgb(33, 23, 121)",
			BackgroundColor: "rgba(21, 34, 150, 0.5)",
			BorderWidth:     3,
		},
	}
}

// NumPoints returns the total number of points over all series.
func NumPoints(dataset []Series) int {
	total := 0
	for _, series := range dataset {
		total += len(series.Data)
	}
	return total
}
