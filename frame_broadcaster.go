package lttbplot

import (
	"context"
	"runtime/trace"
	"sync"

	"github.com/sirupsen/logrus"
)

// FrameBroadcaster fans chart frames out to every open websocket. It remembers
// the frame of the live chart, so a tab opened later still sees the chart.
type FrameBroadcaster struct {
	// Frames waiting to be broadcast. Publish writes, run reads.
	frames chan Frame

	// Closed when the run loop exits, so Publish never blocks on a stopped
	// broadcaster.
	done chan struct{}

	mutex sync.Mutex
	wg    sync.WaitGroup

	// These are the open websockets we are sending frames to. Channels should
	// be buffered: a subscriber whose channel is full is dropped.
	subscribers []subscriber

	// The CHART + DATA frame of the live chart, nil if no chart is live. It is
	// sent to channels upon registration. See RegisterChannel for details.
	cached Frame

	// Just for tracking how many frames are emitted when the loop ends.
	numFramesEmitted int

	metrics *Metrics
	logger  logrus.FieldLogger
}

type subscriber struct {
	c chan<- Frame

	// Closed when the subscriber is dropped for falling behind.
	dropped chan struct{}
}

// Creates a new broadcaster. queueSize is the number of frames that can be
// published before Publish blocks. metrics may be nil.
func NewFrameBroadcaster(queueSize int, metrics *Metrics) *FrameBroadcaster {
	return &FrameBroadcaster{
		frames:      make(chan Frame, queueSize),
		done:        make(chan struct{}),
		mutex:       sync.Mutex{},
		subscribers: make([]subscriber, 0),
		metrics:     metrics,
		logger:      logrus.WithField("tag", "FrameBroadcaster"),
	}
}

func (d *FrameBroadcaster) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(d.done)

		d.run(ctx)

		d.logger.WithField("numFramesEmitted", d.numFramesEmitted).Info("frame broadcaster stopped")
	}()
}

func (d *FrameBroadcaster) Wait() {
	d.wg.Wait()
}

// Publish queues a frame for broadcast. Frames published after the
// broadcaster stopped are dropped.
func (d *FrameBroadcaster) Publish(frame Frame) {
	select {
	case d.frames <- frame:
	case <-d.done:
		d.logger.Debug("broadcaster stopped, dropping frame")
	}
}

// Register a new channel. Called from the HTTP server when a new websocket
// connection is initiated.
//
// - ctx: is the HTTP call context.
// - c: is the channel to send frames on. It must be buffered. Frames are never
// sent blocking: if c is full when a frame is broadcast, the subscriber is
// dropped, so one stalled websocket cannot stall the charts.
//
// The returned channel is closed when the subscriber is dropped. The caller
// should then close its connection; the client reconnects and receives the
// cached frame again.
func (d *FrameBroadcaster) RegisterChannel(ctx context.Context, c chan<- Frame) <-chan struct{} {
	// The lock is held while the cached frame is pushed and the channel is
	// added, so no frame broadcast in between can be missed by the new
	// channel.
	traceCtx, task := trace.NewTask(ctx, "RegisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", d.mutex.Lock)
	defer d.mutex.Unlock()

	sub := subscriber{c: c, dropped: make(chan struct{})}

	if d.cached != nil {
		var pushed bool
		trace.WithRegion(traceCtx, "pushCachedFrame", func() {
			pushed = d.send(sub, d.cached)
		})
		if !pushed {
			return sub.dropped
		}
	}

	d.subscribers = append(d.subscribers, sub)
	d.updateSubscriberMetric()

	d.logger.WithFields(logrus.Fields{
		"channels": len(d.subscribers),
		"cached":   d.cached != nil,
	}).Info("registered channel")

	return sub.dropped
}

// Deregister a channel. Called when a websocket client disconnects. The
// channel shouldn't be closed until this method returns, as it may cause
// panics otherwise. Deregistering a dropped channel does nothing.
func (d *FrameBroadcaster) DeregisterChannel(ctx context.Context, c chan<- Frame) {
	traceCtx, task := trace.NewTask(ctx, "DeregisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", d.mutex.Lock)
	defer d.mutex.Unlock()

	d.subscribers = Filter(d.subscribers, func(sub subscriber) bool {
		return sub.c != c
	})
	d.updateSubscriberMetric()

	d.logger.WithField("channels", len(d.subscribers)).Info("deregistered channel")
}

// Cached returns the frame of the live chart, if any.
func (d *FrameBroadcaster) Cached() Frame {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.cached
}

// Subscribers returns the number of registered channels.
func (d *FrameBroadcaster) Subscribers() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.subscribers)
}

func (d *FrameBroadcaster) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-d.frames:
			traceCtx, task := trace.NewTask(ctx, "FrameBroadcasterLoop")
			d.cacheAndBroadcastFrame(traceCtx, frame)
			task.End()
		}
	}
}

func (d *FrameBroadcaster) cacheAndBroadcastFrame(traceCtx context.Context, frame Frame) {
	if len(frame) == 0 {
		return
	}

	d.numFramesEmitted++

	trace.WithRegion(traceCtx, "Lock", d.mutex.Lock)
	defer d.mutex.Unlock()

	trace.WithRegion(traceCtx, "Cache", func() {
		d.updateCache(frame)
	})

	trace.WithRegion(traceCtx, "Broadcast", func() {
		d.subscribers = Filter(d.subscribers, func(sub subscriber) bool {
			return d.send(sub, frame)
		})
		d.updateSubscriberMetric()
	})
}

// send pushes the frame without blocking. If the subscriber's channel is
// full, it is marked dropped and false is returned. It must be called with the
// mutex held.
func (d *FrameBroadcaster) send(sub subscriber, frame Frame) bool {
	select {
	case sub.c <- frame:
		return true
	default:
		close(sub.dropped)
		d.logger.WithField("capacity", cap(sub.c)).Warn("subscriber fell behind, dropping it")
		return false
	}
}

// updateCache must be called with the mutex held.
func (d *FrameBroadcaster) updateCache(frame Frame) {
	switch head := frame[0].Payload.(type) {
	case ChartMetadata:
		d.cached = frame
		d.logger.WithField("chart", head.ChartID).Debug("cached chart frame")
	case DestroyMessage:
		if d.cached == nil {
			return
		}

		// Only forget the cached frame if it belongs to the destroyed chart. A
		// late destroy must not wipe a newer chart.
		if cachedChart, ok := d.cached[0].Payload.(ChartMetadata); ok && cachedChart.ChartID == head.ChartID {
			d.cached = nil
		}
	}
}

// updateSubscriberMetric must be called with the mutex held.
func (d *FrameBroadcaster) updateSubscriberMetric() {
	if d.metrics != nil {
		d.metrics.subscribers.Set(float64(len(d.subscribers)))
	}
}
