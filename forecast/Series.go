package forecast

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// jsonSeriesKeys are the object keys searched, in order, for a series
// in a JSON file
var jsonSeriesKeys = []string{"et", "rain", "series", "data"}

// ParseSeries parses a series of numbers. If arg names an existing
// file, the file is read as either JSON or CSV, depending on its
// extension. Otherwise arg is treated as an inline list of numbers
// separated by commas, semicolons, pipes, or spaces.
//
// A JSON file must hold either a list of numbers or an object with a
// list under one of the keys "et", "rain", "series", or "data". In a
// CSV file, the first non-empty cell of every non-empty row is used;
// a leading row that is not numeric is treated as a header.
func ParseSeries(arg string) ([]float64, error) {
	arg = strings.TrimSpace(arg)

	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		switch strings.ToLower(filepath.Ext(arg)) {
		case ".json":
			return readJSONSeries(arg)
		case ".csv":
			return readCSVSeries(arg)
		default:
			return nil, fmt.Errorf("parseseries: only .json or .csv files "+
				"are supported, have(%v)", arg)
		}
	}

	return ParseInline(arg)
}

// ParseInline parses an inline list of numbers separated by commas,
// semicolons, pipes, or spaces
func ParseInline(arg string) ([]float64, error) {
	fields := strings.FieldsFunc(arg, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("parseinline: %w", ErrEmptySeries)
	}

	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("parseinline: value %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

// readJSONSeries reads a series from a JSON file
func readJSONSeries(filename string) ([]float64, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("readjsonseries: %w", err)
	}
	return decodeJSONSeries(data)
}

// decodeJSONSeries decodes a series from either a JSON list or an
// object containing a list
func decodeJSONSeries(data []byte) ([]float64, error) {
	var list []float64
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) == 0 {
			return nil, fmt.Errorf("decodejsonseries: %w", ErrEmptySeries)
		}
		return list, nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, fmt.Errorf("decodejsonseries: unsupported JSON format: %w",
			err)
	}

	for _, key := range jsonSeriesKeys {
		raw, ok := object[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			continue
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("decodejsonseries: key %q: %w", key,
				ErrEmptySeries)
		}
		return list, nil
	}

	return nil, fmt.Errorf("decodejsonseries: JSON object must contain a " +
		"list under one of the keys et, rain, series, or data")
}

// readCSVSeries reads a series from a CSV file
func readCSVSeries(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("readcsvseries: %w", err)
	}
	defer file.Close()

	return decodeCSVSeries(file)
}

// decodeCSVSeries decodes a series from the first non-empty cell of
// each row of CSV data
func decodeCSVSeries(r io.Reader) ([]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var values []float64
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decodecsvseries: %w", err)
		}

		cell, ok := firstNonEmpty(record)
		if !ok {
			continue
		}

		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			if len(values) == 0 && row == 0 {
				continue // Header
			}
			return nil, fmt.Errorf("decodecsvseries: row %d: %w", row, err)
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("decodecsvseries: %w", ErrEmptySeries)
	}
	return values, nil
}

// firstNonEmpty returns the first cell of a record that is not blank
func firstNonEmpty(record []string) (string, bool) {
	for _, cell := range record {
		if cell = strings.TrimSpace(cell); cell != "" {
			return cell, true
		}
	}
	return "", false
}
