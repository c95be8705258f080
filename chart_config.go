package lttbplot

// The declarative chart configuration. Field names follow the option names of
// the browser charting library so the page can hand the JSON over without any
// translation.
type ChartConfig struct {
	Type    string       `json:"type" cbor:"type"`
	Data    ChartData    `json:"data" cbor:"data"`
	Options ChartOptions `json:"options" cbor:"options"`
}

type ChartData struct {
	Datasets []Series `json:"datasets" cbor:"datasets"`
}

type ChartOptions struct {
	Responsive  bool              `json:"responsive" cbor:"responsive"`
	Animation   bool              `json:"animation" cbor:"animation"`
	Parsing     bool              `json:"parsing" cbor:"parsing"`
	Interaction InteractionConfig `json:"interaction" cbor:"interaction"`
	Plugins     PluginsConfig     `json:"plugins" cbor:"plugins"`
	Scales      ScalesConfig      `json:"scales" cbor:"scales"`
}

type InteractionConfig struct {
	Mode      string `json:"mode" cbor:"mode"`
	Axis      string `json:"axis" cbor:"axis"`
	Intersect bool   `json:"intersect" cbor:"intersect"`
}

type PluginsConfig struct {
	Decimation DecimationOptions `json:"decimation" cbor:"decimation"`
	Zoom       ZoomPluginConfig  `json:"zoom" cbor:"zoom"`
}

type ZoomPluginConfig struct {
	Pan  PanConfig  `json:"pan" cbor:"pan"`
	Zoom ZoomConfig `json:"zoom" cbor:"zoom"`
}

type PanConfig struct {
	Enabled bool   `json:"enabled" cbor:"enabled"`
	Mode    string `json:"mode" cbor:"mode"`
}

type ZoomConfig struct {
	Wheel Toggle `json:"wheel" cbor:"wheel"`
	Pinch Toggle `json:"pinch" cbor:"pinch"`
	Mode  string `json:"mode" cbor:"mode"`
}

type Toggle struct {
	Enabled bool `json:"enabled" cbor:"enabled"`
}

type ScalesConfig struct {
	X ScaleConfig `json:"x" cbor:"x"`
	Y ScaleConfig `json:"y" cbor:"y"`
}

type ScaleConfig struct {
	Type   string        `json:"type,omitempty" cbor:"type,omitempty"`
	Border *BorderConfig `json:"border,omitempty" cbor:"border,omitempty"`
	Grid   GridConfig    `json:"grid" cbor:"grid"`
}

type BorderConfig struct {
	Display bool `json:"display" cbor:"display"`
}

type GridConfig struct {
	Color string `json:"color" cbor:"color"`
}

const gridColor = "#808080"

// NewLineChartConfig builds the fixed configuration of the line chart: no
// animation, pre-parsed data, nearest point hit testing on x, a time x-axis
// and pan/zoom restricted to x.
func NewLineChartConfig(datasets []Series, decimation DecimationOptions) ChartConfig {
	return ChartConfig{
		Type: "line",
		Data: ChartData{Datasets: datasets},
		Options: ChartOptions{
			Responsive: true,
			Animation:  false,
			Parsing:    false,
			Interaction: InteractionConfig{
				Mode:      "nearest",
				Axis:      "x",
				Intersect: false,
			},
			Plugins: PluginsConfig{
				Decimation: decimation,
				Zoom: ZoomPluginConfig{
					Pan: PanConfig{Enabled: true, Mode: "x"},
					Zoom: ZoomConfig{
						Wheel: Toggle{Enabled: true},
						Pinch: Toggle{Enabled: true},
						Mode:  "x",
					},
				},
			},
			Scales: ScalesConfig{
				X: ScaleConfig{
					Type:   "time",
					Border: &BorderConfig{Display: true},
					Grid:   GridConfig{Color: gridColor},
				},
				Y: ScaleConfig{
					Grid: GridConfig{Color: gridColor},
				},
			},
		},
	}
}

// WithoutData returns a copy of the config carrying the dataset styles only.
// Points travel separately in DATA messages.
func (c ChartConfig) WithoutData() ChartConfig {
	datasets := Map(c.Data.Datasets, func(s Series) Series {
		return Series{SeriesStyle: s.SeriesStyle, Data: []Point{}}
	})

	c.Data = ChartData{Datasets: datasets}
	return c
}
