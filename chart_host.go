package lttbplot

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrNotMounted = errors.New("chart host is not mounted")

// ChartHost owns a surface and the single chart drawn on it. The chart depends
// on the dataset and on the decimation options: whenever either changes, the
// current chart is destroyed and a new one is built. Charts are never mutated
// in place.
type ChartHost struct {
	engine  ChartEngine
	surface Surface

	mutex      sync.Mutex
	mounted    bool
	current    ChartInstance
	dataset    []Series
	decimation DecimationOptions

	// Closed when the current mount ends. Nil while unmounted.
	unmounted chan struct{}

	// Versions of the dependencies, and the versions the current chart was
	// built from.
	dataVersion       uint64
	decimationVersion uint64
	builtData         uint64
	builtDecimation   uint64

	rebuilds int

	logger logrus.FieldLogger
}

func NewChartHost(engine ChartEngine, surface Surface, dataset []Series, decimation DecimationOptions) *ChartHost {
	return &ChartHost{
		engine:            engine,
		surface:           surface,
		dataset:           dataset,
		decimation:        decimation.Clone(),
		dataVersion:       1,
		decimationVersion: 1,
		logger:            logrus.WithField("tag", "ChartHost").WithField("surface", surface.ID),
	}
}

// Mount builds the first chart. If ctx is canceled, the host is closed, which
// guarantees the chart is released even if Close is never called explicitly.
// Only the ctx of the current mount closes the host.
func (h *ChartHost) Mount(ctx context.Context) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.mounted {
		return nil
	}

	unmounted := make(chan struct{})
	h.mounted = true
	h.unmounted = unmounted

	go func() {
		select {
		case <-unmounted:
		case <-ctx.Done():
			h.mutex.Lock()
			defer h.mutex.Unlock()

			if h.unmounted == unmounted {
				h.unmount()
			}
		}
	}()

	return h.commit()
}

// SetData replaces the dataset and rebuilds the chart.
func (h *ChartHost) SetData(dataset []Series) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.dataset = dataset
	h.dataVersion++
	return h.commit()
}

// SetDecimation replaces the decimation options wholesale and rebuilds the
// chart. Every call counts as a change, even with identical options.
func (h *ChartHost) SetDecimation(decimation DecimationOptions) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.decimation = decimation.Clone()
	h.decimationVersion++
	return h.commit()
}

// Refresh re-renders without changing any dependency. It only builds a chart
// if the current one is missing or stale, for example after a failed build.
func (h *ChartHost) Refresh() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.commit()
}

// commit must be called with the mutex held.
func (h *ChartHost) commit() error {
	if !h.mounted {
		// Nothing to draw on yet. The dependencies are picked up on Mount.
		return nil
	}

	if h.current != nil && h.builtData == h.dataVersion && h.builtDecimation == h.decimationVersion {
		return nil
	}

	return h.rebuild()
}

// rebuild releases the current chart before acquiring a new one. It must be
// called with the mutex held.
func (h *ChartHost) rebuild() error {
	h.release()

	config := NewLineChartConfig(h.dataset, h.decimation)
	chart, err := h.engine.NewChart(h.surface, config)
	if err != nil {
		return errors.Wrap(err, "failed to build chart")
	}

	h.current = chart
	h.builtData = h.dataVersion
	h.builtDecimation = h.decimationVersion
	h.rebuilds++

	h.logger.WithFields(logrus.Fields{
		"chart":    chart.ID(),
		"rebuilds": h.rebuilds,
	}).Debug("chart rebuilt")

	return nil
}

// release destroys the current chart. The slot is cleared even if destroying
// fails, so the host never holds on to a chart it could not release.
func (h *ChartHost) release() {
	if h.current == nil {
		return
	}

	chart := h.current
	h.current = nil

	if err := chart.Destroy(); err != nil {
		h.logger.WithError(err).WithField("chart", chart.ID()).Warn("failed to destroy chart")
	}
}

// Close releases the chart and unmounts the host. Calling Close more than once
// does nothing.
func (h *ChartHost) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.unmount()
	return nil
}

// unmount must be called with the mutex held.
func (h *ChartHost) unmount() {
	if !h.mounted {
		return
	}

	h.release()
	h.mounted = false

	close(h.unmounted)
	h.unmounted = nil

	h.logger.Debug("chart host unmounted")
}

// Current returns the live chart, or nil.
func (h *ChartHost) Current() ChartInstance {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.current
}

// WithCurrent calls f with the live chart while holding the host lock, so the
// chart cannot be destroyed while f is using it.
func (h *ChartHost) WithCurrent(f func(ChartInstance) error) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.mounted || h.current == nil {
		return ErrNotMounted
	}

	return f(h.current)
}

// Decimation returns a copy of the current decimation options.
func (h *ChartHost) Decimation() DecimationOptions {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.decimation.Clone()
}

// Points returns the number of points of the dataset, before decimation.
func (h *ChartHost) Points() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return NumPoints(h.dataset)
}

func (h *ChartHost) Surface() Surface {
	return h.surface
}

// Rebuilds returns the number of charts built so far.
func (h *ChartHost) Rebuilds() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.rebuilds
}
