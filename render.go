package lttbplot

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// WritePNG renders the decimated datasets as a PNG sized like the surface.
func (c *Chart) WritePNG(w io.Writer) error {
	return c.render(chart.PNG, w)
}

// WriteSVG renders the decimated datasets as an SVG sized like the surface.
func (c *Chart) WriteSVG(w io.Writer) error {
	return c.render(chart.SVG, w)
}

func (c *Chart) render(provider chart.RendererProvider, w io.Writer) error {
	if c.Destroyed() {
		return errors.Wrapf(ErrChartDestroyed, "cannot render chart %d", c.id)
	}

	grid := chart.Style{
		StrokeColor: parseColor(c.config.Options.Scales.X.Grid.Color),
		StrokeWidth: 1,
	}

	graph := chart.Chart{
		Width:  c.surface.Width,
		Height: c.surface.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
			GridMajorStyle: grid,
		},
		YAxis: chart.YAxis{
			GridMajorStyle: grid,
		},
	}

	for _, series := range c.datasets {
		xs := make([]time.Time, len(series.Data))
		ys := make([]float64, len(series.Data))
		for i, p := range series.Data {
			xs[i] = p.Time()
			ys[i] = p.Y
		}

		graph.Series = append(graph.Series, chart.TimeSeries{
			Name: series.Label,
			Style: chart.Style{
				StrokeColor: parseColor(series.BorderColor),
				StrokeWidth: float64(series.BorderWidth),
			},
			XValues: xs,
			YValues: ys,
		})
	}

	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(provider, w); err != nil {
		return errors.Wrapf(err, "failed to render chart %d", c.id)
	}

	return nil
}

// parseColor understands the CSS forms used by the dataset styles: #rrggbb,
// rgb(r, g, b) and rgba(r, g, b, a). Anything else renders black.
func parseColor(css string) drawing.Color {
	css = strings.TrimSpace(css)

	if strings.HasPrefix(css, "#") {
		return drawing.ColorFromHex(strings.TrimPrefix(css, "#"))
	}

	open := strings.IndexByte(css, '(')
	if open < 0 || !strings.HasSuffix(css, ")") {
		return drawing.ColorBlack
	}

	parts := strings.Split(css[open+1:len(css)-1], ",")
	if len(parts) < 3 {
		return drawing.ColorBlack
	}

	channels := make([]uint8, 3)
	for i := range channels {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return drawing.ColorBlack
		}
		channels[i] = uint8(Clamp(v, 0, 255))
	}

	color := drawing.Color{R: channels[0], G: channels[1], B: channels[2], A: 255}
	if len(parts) > 3 {
		alpha, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err == nil {
			color.A = uint8(Clamp(alpha, 0, 1) * 255)
		}
	}

	return color
}

// String is used in logs.
func (s Surface) String() string {
	return fmt.Sprintf("%s(%dx%d)", s.ID, s.Width, s.Height)
}
