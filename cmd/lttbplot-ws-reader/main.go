package main

import (
	"context"
	"encoding/csv"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"

	"github.com/cactusdynamics/lttbplot"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

// The largest message accepted from the server. A DATA message carries 16
// bytes per point, so this holds series of about four million points.
const readLimit = 64 << 20

// Config holds the configuration for the WS reader
type Config struct {
	ServerURL string
	Output    io.Writer
	Logger    logrus.FieldLogger
}

// WSReader reads the frames of the lttbplot /ws endpoint and outputs the
// decimated points of the first chart as CSV.
type WSReader struct {
	config    Config
	csvWriter *csv.Writer

	// The chart being read. Zero until the first CHART message.
	chartID uint32
}

// NewWSReader creates a new WS reader with the given configuration
func NewWSReader(config Config) *WSReader {
	return &WSReader{
		config:    config,
		csvWriter: csv.NewWriter(config.Output),
	}
}

// Connect establishes websocket connection and processes messages until the
// first chart is destroyed or the server closes the connection.
func (w *WSReader) Connect(ctx context.Context) error {
	u, err := url.Parse(w.config.ServerURL)
	if err != nil {
		return errors.Wrap(err, "invalid server URL")
	}

	// Change scheme to websocket
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	u.Path = "/ws"

	w.config.Logger.WithField("url", u.String()).Info("connecting to websocket")

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to connect to websocket")
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	conn.SetReadLimit(readLimit)

	if err := w.csvWriter.Write([]string{"chart_id", "series_id", "x", "y"}); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	for {
		_, messageData, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				w.config.Logger.Info("connection closed normally")
				break
			}
			w.csvWriter.Flush()
			return errors.Wrap(err, "failed to read message")
		}

		if err := w.processMessage(messageData); err != nil {
			if err == io.EOF {
				w.config.Logger.Info("chart destroyed")
				break
			}
			w.config.Logger.WithError(err).Error("error processing message")
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

// processMessage processes a single websocket message. It returns io.EOF once
// the chart being read is destroyed.
func (w *WSReader) processMessage(messageData []byte) error {
	msg, err := lttbplot.DecodeWSMessage(messageData)
	if err != nil {
		return errors.Wrap(err, "failed to decode message")
	}

	switch msg.Header.Type {
	case lttbplot.MessageTypeChart:
		metadata, ok := msg.Payload.(lttbplot.ChartMetadata)
		if !ok {
			return errors.Errorf("invalid CHART message payload type: %T", msg.Payload)
		}

		if w.chartID == 0 {
			w.chartID = metadata.ChartID
		}

		w.config.Logger.WithFields(logrus.Fields{
			"chart":     metadata.ChartID,
			"original":  metadata.OriginalPoints,
			"decimated": metadata.DecimatedPoints,
		}).Debug("received chart")

	case lttbplot.MessageTypeData:
		dataMsg, ok := msg.Payload.(lttbplot.DataMessage)
		if !ok {
			return errors.Errorf("invalid DATA message payload type: %T", msg.Payload)
		}

		if dataMsg.ChartID != w.chartID {
			return nil
		}
		return w.processDataMessage(dataMsg)

	case lttbplot.MessageTypeDestroy:
		destroy, ok := msg.Payload.(lttbplot.DestroyMessage)
		if !ok {
			return errors.Errorf("invalid DESTROY message payload type: %T", msg.Payload)
		}

		if w.chartID != 0 && destroy.ChartID == w.chartID {
			return io.EOF
		}

	default:
		w.config.Logger.WithField("type", msg.Header.Type).Warn("unknown message type")
	}

	return nil
}

// processDataMessage processes a DATA message and writes CSV rows
func (w *WSReader) processDataMessage(dataMsg lttbplot.DataMessage) error {
	chartID := strconv.FormatUint(uint64(dataMsg.ChartID), 10)
	seriesID := strconv.FormatUint(uint64(dataMsg.SeriesID), 10)

	for i := 0; i < len(dataMsg.X); i++ {
		row := []string{
			chartID,
			seriesID,
			strconv.FormatFloat(dataMsg.X[i], 'f', -1, 64),
			strconv.FormatFloat(dataMsg.Y[i], 'g', -1, 64),
		}
		if err := w.csvWriter.Write(row); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

type options struct {
	URL     string `short:"u" long:"url" default:"http://localhost:5274" description:"URL of the lttbplot server"`
	Verbose bool   `short:"v" long:"verbose" description:"log at debug level"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	reader := NewWSReader(Config{
		ServerURL: opts.URL,
		Output:    os.Stdout,
		Logger:    logger.WithField("tag", "WSReader"),
	})

	if err := reader.Connect(ctx); err != nil {
		logger.WithError(err).Error("failed to read chart")
		os.Exit(1)
	}
}
