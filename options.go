package lttbplot

import (
	"net"
	"strconv"
)

// Options is the command line configuration of the lttbplot binary. It is
// parsed with go-flags.
type Options struct {
	Host string `long:"host" default:"localhost" description:"the host to listen on"`
	Port uint16 `short:"p" long:"port" default:"5274" description:"the port to listen on"`

	Input string `short:"i" long:"input" description:"read the series from this file instead of generating them, - for stdin"`
	CSV   bool   `long:"csv" description:"parse the input as strict CSV instead of space or comma separated columns"`
	XCol  int    `long:"x-column" default:"-1" description:"the input column holding the x value in unix milliseconds, -1 to stamp rows at the generator interval"`

	Points int   `short:"n" long:"points" default:"100000" description:"the number of points per generated series"`
	Seed   int64 `long:"seed" default:"10" description:"the seed of the generated magnitudes"`

	Width   int `long:"width" default:"1000" description:"the width of the chart surface in pixels"`
	Height  int `long:"height" default:"500" description:"the height of the chart surface in pixels"`
	Samples int `long:"samples" description:"the initial LTTB sample budget, defaults to the surface width"`

	Open    bool `long:"open" description:"open the chart in the default browser"`
	Verbose bool `short:"v" long:"verbose" description:"log at debug level"`
}

func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(int(o.Port)))
}

func (o Options) Surface() Surface {
	return Surface{
		ID:     "chart",
		Width:  o.Width,
		Height: o.Height,
	}
}

// Decimation returns the options the chart is first built with.
func (o Options) Decimation() DecimationOptions {
	if o.Samples > 0 {
		return LTTBOptions(o.Samples)
	}
	return DefaultDecimationOptions()
}

func (o Options) GeneratorOptions() GeneratorOptions {
	options := DefaultGeneratorOptions()
	if o.Points > 0 {
		options.NumPoints = o.Points
	}
	return options
}
