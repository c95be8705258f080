package lttbplot

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Instead of generating the dataset, it can be loaded from text. The pipeline
// starts with an io.Reader (a file or stdin), then a StringReader splits each
// line into columns. The TextToDataRowReader converts the columns into a data
// row, and ReadSeries collects the rows into one series per Y column.

var errIgnoreThisRow = errors.New("ignore this row")

// When Read is called, return an array of strings which are the columns.
type StringReader interface {
	Read(context.Context) ([]string, error)
}

// One line of input. X is a unix timestamp in milliseconds.
type DataRow struct {
	X  float64
	Ys []float64
}

// When Read is called, return the DataRow.
type DataRowReader interface {
	Read(context.Context) (DataRow, error)
	ColumnNames() []string
}

// This implements a StringReader and reads an io.Reader using the Golang csv
// module. This means the input data must strictly conform to CSV data. If the
// input data is not exactly CSV (for example separated by one or more spaces),
// use the RelaxedStringReader.
type CsvStringReader struct {
	input     io.Reader
	csvReader *csv.Reader

	lineCount int
}

func NewCsvStringReader(input io.Reader) *CsvStringReader {
	csvReader := csv.NewReader(input)
	// Rows with a different number of columns are dealt with by the
	// TextToDataRowReader.
	csvReader.FieldsPerRecord = -1

	return &CsvStringReader{
		input:     input,
		csvReader: csvReader,
		lineCount: 0,
	}
}

func (r *CsvStringReader) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	line, err := r.csvReader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}

	r.lineCount++

	if err != nil {
		logger := logrus.WithFields(logrus.Fields{
			"tag":     "CsvString",
			"line":    line,
			"lineNum": r.lineCount,
		})

		switch err.(type) {
		case *csv.ParseError:
			logger.WithError(err).Debug("unable to parse CSV, ignoring...")
			return nil, errIgnoreThisRow
		default:
			logger.WithError(err).Error("unable to read CSV")
			return nil, err
		}
	}

	return line, nil
}

// This is a more relaxed reader that can split on spaces or commas. However, it does not
// follow string CSV formatting. This is the default.
type RelaxedStringReader struct {
	input   io.Reader
	scanner *bufio.Scanner

	lineCount int
}

func NewRelaxedStringReader(input io.Reader) *RelaxedStringReader {
	return &RelaxedStringReader{
		input:   input,
		scanner: bufio.NewScanner(input),

		lineCount: 0,
	}
}

// Split on either comma or any number of spaces or tabs
var relaxedSplitter = regexp.MustCompile("[ \t]+|,")

func (r *RelaxedStringReader) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			logrus.WithField("tag", "RelaxedString").WithError(err).Error("unable to read line")
			return nil, err
		}
		return nil, io.EOF
	}

	r.lineCount++
	line := r.scanner.Text()

	// Return only non-empty columns
	splittedLine := Filter(relaxedSplitter.Split(line, -1), func(value string) bool {
		return len(value) > 0
	})

	return splittedLine, nil
}

// IntervalXGenerator stamps rows that have no X column. The first row gets
// start, every following row is interval later.
func IntervalXGenerator(start time.Time, interval time.Duration) func([]float64) float64 {
	next := start.UnixMilli()
	step := interval.Milliseconds()

	return func([]float64) float64 {
		x := next
		next += step
		return float64(x)
	}
}

// Creates a DataRowReader based on text input. Unrecognized/unparsable lines
// will be ignored and logged via warnings.
type TextToDataRowReader struct {
	// The input reader object (either CsvStringReader or RelaxedStringReader)
	Input StringReader

	// The x column index. If this is <0, X is generated via XGenerator. Note
	// this column will be put into DataRow.X while the rest of the row except
	// this column will be put into DataRow.Ys.
	XIndex int

	// The generator function. Defaults to an IntervalXGenerator starting at
	// DefaultStart with the default generator interval.
	XGenerator func([]float64) float64

	// The labels of the columns excluding the X column.
	Columns []string

	// If the input row has a different length than Columns, ignore the row.
	ExpectExactColumnCount bool
}

func (r *TextToDataRowReader) Read(ctx context.Context) (DataRow, error) {
	line, err := r.Input.Read(ctx)
	if err != nil {
		return DataRow{}, err
	}

	logger := logrus.WithFields(logrus.Fields{
		"tag":  "TextToData",
		"line": line,
	})

	dataRow := DataRow{}

	for i, value := range line {
		floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			logger.Warn("cannot parse float, ignoring...")
			return DataRow{}, errIgnoreThisRow
		}

		if i == r.XIndex {
			dataRow.X = floatValue
			continue
		}

		dataRow.Ys = append(dataRow.Ys, floatValue)
	}

	if r.ExpectExactColumnCount && (len(r.Columns) != len(dataRow.Ys)) {
		logger.Warnf("expected column count (%d) is not observed (%d)", len(r.Columns), len(dataRow.Ys))
		return DataRow{}, errIgnoreThisRow
	}

	if r.XIndex < 0 {
		if r.XGenerator == nil {
			defaults := DefaultGeneratorOptions()
			r.XGenerator = IntervalXGenerator(defaults.Start, defaults.Interval)
		}

		dataRow.X = r.XGenerator(dataRow.Ys)
	}

	return dataRow, nil
}

func (r *TextToDataRowReader) ColumnNames() []string {
	return r.Columns
}

// ReadSeries drains the reader into one series per Y column. Series are
// labelled with the reader's column names and styled with styles, in order.
// Rows that are not strictly after the previous row are dropped, as series
// must be ordered by X.
func ReadSeries(ctx context.Context, reader DataRowReader, styles []SeriesStyle) ([]Series, error) {
	logger := logrus.WithField("tag", "ReadSeries")

	columns := reader.ColumnNames()
	var dataset []Series

	ensureSeries := func(n int) {
		for len(dataset) < n {
			i := len(dataset)

			var style SeriesStyle
			if i < len(styles) {
				style = styles[i]
			}

			switch {
			case i < len(columns):
				style.Label = columns[i]
			case style.Label == "":
				style.Label = "Series " + strconv.Itoa(i+1)
			}

			dataset = append(dataset, Series{SeriesStyle: style})
		}
	}

	ensureSeries(len(columns))

	numRows := 0
	lastX := int64(0)

	for {
		dataRow, err := reader.Read(ctx)
		if err == errIgnoreThisRow {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to read row %d", numRows+1)
		}

		x := int64(dataRow.X)
		if numRows > 0 && x <= lastX {
			logger.WithFields(logrus.Fields{
				"x":     x,
				"lastX": lastX,
			}).Warn("row is not after the previous row, ignoring...")
			continue
		}

		ensureSeries(len(dataRow.Ys))
		for i, y := range dataRow.Ys {
			dataset[i].Data = append(dataset[i].Data, Point{X: x, Y: y})
		}

		numRows++
		lastX = x
	}

	logger.WithFields(logrus.Fields{
		"rows":   numRows,
		"series": len(dataset),
	}).Info("read series")

	return dataset, nil
}
