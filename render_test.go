package lttbplot

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		css  string
		want drawing.Color
	}{
		{"#808080", drawing.Color{R: 128, G: 128, B: 128, A: 255}},
		{"rgb(255, 99, 132)", drawing.Color{R: 255, G: 99, B: 132, A: 255}},
		{"rgba(21, 34, 150, 0.5)", drawing.Color{R: 21, G: 34, B: 150, A: 127}},
		{"rgb(300, -4, 10)", drawing.Color{R: 255, G: 0, B: 10, A: 255}},
		{"hotpink", drawing.ColorBlack},
		{"rgb(1, 2)", drawing.ColorBlack},
	}

	for _, tt := range tests {
		t.Run(tt.css, func(t *testing.T) {
			if got := parseColor(tt.css); got != tt.want {
				t.Fatalf("parseColor(%q) = %+v, want %+v", tt.css, got, tt.want)
			}
		})
	}
}

func TestChartRender(t *testing.T) {
	engine := NewEngine(nil, nil)
	surface := Surface{ID: "chart", Width: 320, Height: 240}

	instance, err := engine.NewChart(surface, NewLineChartConfig(testDataset(), DefaultDecimationOptions()))
	if err != nil {
		t.Fatalf("NewChart() error = %v", err)
	}
	chart := instance.(*Chart)

	var buf bytes.Buffer
	if err := chart.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Fatalf("image is %dx%d, want 320x240", b.Dx(), b.Dy())
	}

	buf.Reset()
	if err := chart.WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG() error = %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(DefaultSeriesStyles()[0].Label)) {
		t.Fatal("SVG does not contain the legend")
	}

	chart.Destroy()

	if err := chart.WritePNG(&buf); !errors.Is(err, ErrChartDestroyed) {
		t.Fatalf("expected ErrChartDestroyed, got %v", err)
	}
}
