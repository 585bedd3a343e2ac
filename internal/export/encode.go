package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/newthinker/bandrev/internal/backtest"
	"github.com/newthinker/bandrev/internal/core"
	"github.com/parquet-go/parquet-go"
)

// Format is a trade log file format
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a configured format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown export format %q", s))
	}
}

// Encode renders trades in the given format
func Encode(trades []backtest.Trade, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return EncodeCSV(trades)
	case FormatParquet:
		return EncodeParquet(trades)
	default:
		return nil, core.WrapError(core.ErrExportFailed, fmt.Errorf("unknown export format %q", format))
	}
}

// EncodeCSV renders trades as CSV with a header row
func EncodeCSV(trades []backtest.Trade) ([]byte, error) {
	return marshalCSV(Records(trades))
}

// EncodeParquet renders trades as a single Parquet file
func EncodeParquet(trades []backtest.Trade) ([]byte, error) {
	return marshalParquet(Records(trades))
}

// EncodeSeries renders the per-bar output of result in the given format
func EncodeSeries(result *backtest.Result, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return marshalCSV(SeriesRecords(result))
	case FormatParquet:
		return marshalParquet(SeriesRecords(result))
	default:
		return nil, core.WrapError(core.ErrExportFailed, fmt.Errorf("unknown export format %q", format))
	}
}

// DecodeCSV parses a trade log written by EncodeCSV
func DecodeCSV(data []byte) ([]Record, error) {
	return unmarshalCSV[Record](data)
}

// DecodeParquet parses a trade log written by EncodeParquet
func DecodeParquet(data []byte) ([]Record, error) {
	return unmarshalParquet[Record](data)
}

// DecodeSeriesCSV parses a per-bar series written by EncodeSeries
func DecodeSeriesCSV(data []byte) ([]SeriesRecord, error) {
	return unmarshalCSV[SeriesRecord](data)
}

// DecodeSeriesParquet parses a per-bar series written by EncodeSeries
func DecodeSeriesParquet(data []byte) ([]SeriesRecord, error) {
	return unmarshalParquet[SeriesRecord](data)
}

func marshalCSV[T any](rows []T) ([]byte, error) {
	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, core.WrapError(core.ErrExportFailed, fmt.Errorf("encoding csv: %w", err))
	}
	return data, nil
}

func marshalParquet[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, core.WrapError(core.ErrExportFailed, fmt.Errorf("encoding parquet: %w", err))
	}
	return buf.Bytes(), nil
}

func unmarshalCSV[T any](data []byte) ([]T, error) {
	var rows []T
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding csv: %w", err)
	}
	return rows, nil
}

func unmarshalParquet[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding parquet: %w", err)
	}
	return rows, nil
}
