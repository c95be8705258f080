package main

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cactusdynamics/lttbplot"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

type testServer struct {
	host        *lttbplot.ChartHost
	broadcaster *lttbplot.FrameBroadcaster
	server      *httptest.Server
}

func newTestServer(t *testing.T, ctx context.Context, dataset []lttbplot.Series) *testServer {
	broadcaster := lttbplot.NewFrameBroadcaster(16, nil)
	broadcaster.Start(ctx)

	engine := lttbplot.NewEngine(broadcaster, nil)
	surface := lttbplot.Surface{ID: "chart", Width: 100, Height: 50}
	host := lttbplot.NewChartHost(engine, surface, dataset, lttbplot.DefaultDecimationOptions())
	if err := host.Mount(ctx); err != nil {
		t.Fatalf("Failed to mount chart host: %v", err)
	}

	controls := lttbplot.NewControls(host)
	server := httptest.NewServer(lttbplot.NewHttpServer(host, controls, broadcaster, nil, "").Handler())
	t.Cleanup(server.Close)

	return &testServer{
		host:        host,
		broadcaster: broadcaster,
		server:      server,
	}
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Starts the reader and returns the channel its result is sent on. It waits
// until the reader is subscribed, so a later chart change is observed.
func startReader(t *testing.T, ctx context.Context, ts *testServer, output io.Writer) <-chan error {
	reader := NewWSReader(Config{
		ServerURL: ts.server.URL,
		Output:    output,
		Logger:    discardLogger(),
	})

	done := make(chan error, 1)
	go func() {
		done <- reader.Connect(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for ts.broadcaster.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("WSReader never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	return done
}

func waitReader(t *testing.T, done <-chan error) {
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WSReader.Connect() failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WSReader.Connect() timed out")
	}
}

func TestWSReaderBasicData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataset := []lttbplot.Series{
		{
			SeriesStyle: lttbplot.SeriesStyle{Label: "Series1"},
			Data:        []lttbplot.Point{{X: 1000, Y: 10.5}, {X: 2000, Y: 11.2}, {X: 3000, Y: 12.8}},
		},
		{
			SeriesStyle: lttbplot.SeriesStyle{Label: "Series2"},
			Data:        []lttbplot.Point{{X: 1000, Y: 20.3}, {X: 2000, Y: 21.1}, {X: 3000, Y: 19.7}},
		},
	}

	ts := newTestServer(t, ctx, dataset)

	var output bytes.Buffer
	done := startReader(t, ctx, ts, &output)

	// Rebuilding the chart destroys the first one, which ends the reader.
	if err := ts.host.SetDecimation(lttbplot.LTTBOptions(2)); err != nil {
		t.Fatalf("Failed to set decimation: %v", err)
	}

	waitReader(t, done)

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")

	expectedHeader := "chart_id,series_id,x,y"
	if lines[0] != expectedHeader {
		t.Errorf("Expected header %q, got %q", expectedHeader, lines[0])
	}

	expectedRows := []string{
		"1,0,1000,10.5",
		"1,0,2000,11.2",
		"1,0,3000,12.8",
		"1,1,1000,20.3",
		"1,1,2000,21.1",
		"1,1,3000,19.7",
	}

	dataLines := lines[1:]
	if len(dataLines) != len(expectedRows) {
		t.Fatalf("Expected %d data rows, got %d: %v", len(expectedRows), len(dataLines), dataLines)
	}

	for i, expectedRow := range expectedRows {
		if dataLines[i] != expectedRow {
			t.Errorf("Row %d: expected %q, got %q", i, expectedRow, dataLines[i])
		}
	}
}

func TestWSReaderEmptyData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataset := []lttbplot.Series{
		{SeriesStyle: lttbplot.SeriesStyle{Label: "Series1"}},
	}

	ts := newTestServer(t, ctx, dataset)

	var output bytes.Buffer
	done := startReader(t, ctx, ts, &output)

	if err := ts.host.Close(); err != nil {
		t.Fatalf("Failed to close chart host: %v", err)
	}

	waitReader(t, done)

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 1 {
		t.Errorf("Expected only header line, got %d lines", len(lines))
	}

	expectedHeader := "chart_id,series_id,x,y"
	if lines[0] != expectedHeader {
		t.Errorf("Expected header %q, got %q", expectedHeader, lines[0])
	}
}

func TestWSReaderLargeChart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	options := lttbplot.DefaultGeneratorOptions()
	options.NumPoints = 40000
	generator := lttbplot.NewGenerator(options, lttbplot.NewSeededRand(lttbplot.DefaultSeed), rand.New(rand.NewSource(1)))

	ts := newTestServer(t, ctx, generator.Dataset())

	// The chart built by the "LTTB decimation (30000 samples)" button. Each of
	// its DATA messages is about 480 KB.
	if err := ts.host.SetDecimation(lttbplot.LTTBOptions(30000)); err != nil {
		t.Fatalf("Failed to set decimation: %v", err)
	}

	// Wait for the chart to be cached, so the reader starts on it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		cached := ts.broadcaster.Cached()
		if cached != nil {
			if metadata, ok := cached[0].Payload.(lttbplot.ChartMetadata); ok && metadata.ChartID == 2 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("chart 2 was never cached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var output bytes.Buffer
	done := startReader(t, ctx, ts, &output)

	if err := ts.host.SetDecimation(lttbplot.LTTBOptions(50000)); err != nil {
		t.Fatalf("Failed to set decimation: %v", err)
	}

	waitReader(t, done)

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	dataLines := lines[1:]
	if len(dataLines) != 60000 {
		t.Fatalf("Expected 60000 data rows, got %d", len(dataLines))
	}

	for i, line := range dataLines {
		if !strings.HasPrefix(line, "2,") {
			t.Fatalf("Row %d belongs to another chart: %q", i, line)
		}
	}

	// LTTB keeps the first point of each series.
	if !strings.HasPrefix(dataLines[0], "2,0,1617235200000,") {
		t.Errorf("Unexpected first row %q", dataLines[0])
	}
	if !strings.HasPrefix(dataLines[30000], "2,1,1617235200000,") {
		t.Errorf("Unexpected first row of series 1 %q", dataLines[30000])
	}
}

func TestWSReaderReadError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c, err := websocket.Accept(w, req, nil)
		if err != nil {
			return
		}
		c.Close(websocket.StatusInternalError, "server failed")
	}))
	defer server.Close()

	var output bytes.Buffer
	reader := NewWSReader(Config{
		ServerURL: server.URL,
		Output:    &output,
		Logger:    discardLogger(),
	})

	err := reader.Connect(ctx)
	if err == nil {
		t.Fatal("Expected WSReader.Connect() to fail")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusInternalError {
		t.Errorf("Expected close status %v, got %v (%v)", websocket.StatusInternalError, status, err)
	}

	if got := strings.TrimSpace(output.String()); got != "chart_id,series_id,x,y" {
		t.Errorf("Expected only the header, got %q", got)
	}
}
