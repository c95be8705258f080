package lttbplot

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrSurfaceInUse   = errors.New("surface is already in use, the chart using it must be destroyed first")
	ErrChartDestroyed = errors.New("chart already destroyed")
)

// Surface is the drawable target a chart is bound to. Width doubles as the
// default decimation budget, in pixels.
type Surface struct {
	ID     string `json:"id" cbor:"id"`
	Width  int    `json:"width" cbor:"width"`
	Height int    `json:"height" cbor:"height"`
}

// ChartInstance is a live chart. It must be destroyed before its surface can
// be reused.
type ChartInstance interface {
	ID() uint32
	Destroy() error
}

// ChartEngine builds chart instances on surfaces.
type ChartEngine interface {
	NewChart(surface Surface, config ChartConfig) (ChartInstance, error)
}

// A frame is the list of messages describing one chart event.
type Frame []WSMessage

// FramePublisher receives the frames emitted when charts are built and
// destroyed. The FrameBroadcaster is the production implementation.
type FramePublisher interface {
	Publish(frame Frame)
}

// Engine is the production ChartEngine. It decimates the datasets of every
// chart it builds and publishes them to the subscribers of the surface.
type Engine struct {
	publisher FramePublisher
	metrics   *Metrics

	mutex    sync.Mutex
	surfaces map[string]*Chart
	lastID   uint32

	logger logrus.FieldLogger
}

// Creates a new engine. Both publisher and metrics may be nil.
func NewEngine(publisher FramePublisher, metrics *Metrics) *Engine {
	return &Engine{
		publisher: publisher,
		metrics:   metrics,
		surfaces:  make(map[string]*Chart),
		logger:    logrus.WithField("tag", "Engine"),
	}
}

func (e *Engine) NewChart(surface Surface, config ChartConfig) (ChartInstance, error) {
	return e.newChart(surface, config)
}

func (e *Engine) newChart(surface Surface, config ChartConfig) (*Chart, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if existing, ok := e.surfaces[surface.ID]; ok {
		return nil, errors.Wrapf(ErrSurfaceInUse, "surface %q is held by chart %d", surface.ID, existing.id)
	}

	start := time.Now()

	decimation := config.Options.Plugins.Decimation
	datasets, err := DecimateDataset(config.Data.Datasets, decimation, surface.Width)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build chart")
	}

	e.lastID++
	chart := &Chart{
		id:       e.lastID,
		surface:  surface,
		config:   config,
		original: config.Data.Datasets,
		datasets: datasets,
		engine:   e,
	}
	e.surfaces[surface.ID] = chart

	e.publish(chart.frame())

	if e.metrics != nil {
		e.metrics.chartBuilt(datasets)
	}

	e.logger.WithFields(logrus.Fields{
		"chart":     chart.id,
		"surface":   surface.ID,
		"algorithm": decimation.Algorithm,
		"enabled":   decimation.Enabled,
		"points":    humanize.Comma(int64(NumPoints(config.Data.Datasets))),
		"decimated": humanize.Comma(int64(NumPoints(datasets))),
		"took":      time.Since(start),
	}).Info("built chart")

	return chart, nil
}

func (e *Engine) release(chart *Chart) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.surfaces[chart.surface.ID] == chart {
		delete(e.surfaces, chart.surface.ID)
	}

	e.publish(Frame{newMessage(MessageTypeDestroy, DestroyMessage{
		ChartID: chart.id,
		Reason:  "destroyed",
	})})

	if e.metrics != nil {
		e.metrics.chartDestroyed()
	}

	e.logger.WithFields(logrus.Fields{
		"chart":   chart.id,
		"surface": chart.surface.ID,
	}).Info("destroyed chart")
}

// LiveCharts returns the number of charts that are not yet destroyed.
func (e *Engine) LiveCharts() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.surfaces)
}

func (e *Engine) publish(frame Frame) {
	if e.publisher != nil {
		e.publisher.Publish(frame)
	}
}

// Chart is a chart built by the Engine. It holds both the original and the
// decimated datasets.
type Chart struct {
	id       uint32
	surface  Surface
	config   ChartConfig
	original []Series
	datasets []Series

	engine    *Engine
	destroyed atomic.Bool
}

func (c *Chart) ID() uint32 { return c.id }

func (c *Chart) Surface() Surface { return c.surface }

func (c *Chart) Config() ChartConfig { return c.config }

// Datasets returns the decimated datasets.
func (c *Chart) Datasets() []Series { return c.datasets }

// Destroy releases the surface. It may only be called once.
func (c *Chart) Destroy() error {
	if !c.destroyed.CompareAndSwap(false, true) {
		return errors.Wrapf(ErrChartDestroyed, "chart %d", c.id)
	}

	c.engine.release(c)
	return nil
}

func (c *Chart) Destroyed() bool {
	return c.destroyed.Load()
}

// Metadata describes the chart without its points.
func (c *Chart) Metadata() ChartMetadata {
	return ChartMetadata{
		ChartID: c.id,
		Surface: c.surface,
		Config:  c.config.WithoutData(),
		OriginalPoints: Map(c.original, func(s Series) int {
			return len(s.Data)
		}),
		DecimatedPoints: Map(c.datasets, func(s Series) int {
			return len(s.Data)
		}),
	}
}

// frame is the CHART message followed by one DATA message per series.
func (c *Chart) frame() Frame {
	frame := make(Frame, 0, len(c.datasets)+1)
	frame = append(frame, newMessage(MessageTypeChart, c.Metadata()))

	for i, series := range c.datasets {
		frame = append(frame, newMessage(MessageTypeData, NewDataMessage(c.id, uint32(i), series.Data)))
	}

	return frame
}
