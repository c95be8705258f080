package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cactusdynamics/lttbplot"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	var options lttbplot.Options
	if _, err := flags.Parse(&options); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if options.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, options); err != nil {
		logrus.WithError(err).Fatal("lttbplot failed")
	}
}

func run(ctx context.Context, options lttbplot.Options) error {
	dataset, err := loadDataset(ctx, options)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := lttbplot.NewMetrics(registry)

	broadcaster := lttbplot.NewFrameBroadcaster(16, metrics)
	broadcaster.Start(ctx)

	engine := lttbplot.NewEngine(broadcaster, metrics)

	host := lttbplot.NewChartHost(engine, options.Surface(), dataset, options.Decimation())
	if err := host.Mount(ctx); err != nil {
		return errors.Wrap(err, "failed to mount chart")
	}
	defer host.Close()

	controls := lttbplot.NewControls(host)
	server := lttbplot.NewHttpServer(host, controls, broadcaster, registry, options.Addr())

	if options.Open {
		lttbplot.OpenBrowser("http://" + options.Addr())
	}

	return server.Run(ctx)
}

func loadDataset(ctx context.Context, options lttbplot.Options) ([]lttbplot.Series, error) {
	if options.Input == "" {
		generator := lttbplot.NewGenerator(options.GeneratorOptions(), lttbplot.NewSeededRand(options.Seed), nil)
		return generator.Dataset(), nil
	}

	var input io.Reader = os.Stdin
	if options.Input != "-" {
		f, err := os.Open(options.Input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open input")
		}
		defer f.Close()
		input = f
	}

	var stringReader lttbplot.StringReader
	if options.CSV {
		stringReader = lttbplot.NewCsvStringReader(input)
	} else {
		stringReader = lttbplot.NewRelaxedStringReader(input)
	}

	reader := &lttbplot.TextToDataRowReader{
		Input:  stringReader,
		XIndex: options.XCol,
	}

	return lttbplot.ReadSeries(ctx, reader, lttbplot.DefaultSeriesStyles())
}
