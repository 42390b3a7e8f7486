// Package seed loads meteorite fall datasets into the catalog store.
//
// Datasets follow the NASA meteorite landings export: a JSON array of
// objects whose numeric fields may be encoded as strings and whose year is
// an ISO timestamp. Files may carry comments or trailing commas and may be
// zstd-compressed (".zst").
package seed

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/louisbranch/meteorfall/internal/services/catalog/storage"
	"github.com/tailscale/hujson"
)

// Skipped describes one dataset row that was not imported.
type Skipped struct {
	Index  int
	Reason string
}

// Dataset is the parsed, validated content of one dataset file.
type Dataset struct {
	Records []storage.Record
	Skipped []Skipped
}

// ReadFile reads and parses the dataset at path.
func ReadFile(path string) (Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".zst") {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return Dataset{}, fmt.Errorf("open zstd stream: %w", err)
		}
		defer decoder.Close()
		reader = decoder
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return Dataset{}, fmt.Errorf("read dataset: %w", err)
	}
	return Parse(data)
}

// Parse decodes a dataset document. Rows missing an id, name, year or mass
// are reported in Skipped rather than failing the whole import.
func Parse(data []byte) (Dataset, error) {
	standard, err := hujson.Standardize(data)
	if err != nil {
		return Dataset{}, fmt.Errorf("parse dataset: %w", err)
	}
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(standard, &rows); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}

	dataset := Dataset{Records: make([]storage.Record, 0, len(rows))}
	seen := make(map[int64]bool, len(rows))
	for idx, row := range rows {
		record, err := parseRow(row)
		if err != nil {
			dataset.Skipped = append(dataset.Skipped, Skipped{Index: idx, Reason: err.Error()})
			continue
		}
		if seen[record.ID] {
			dataset.Skipped = append(dataset.Skipped, Skipped{Index: idx, Reason: fmt.Sprintf("duplicate id %d", record.ID)})
			continue
		}
		seen[record.ID] = true
		dataset.Records = append(dataset.Records, record)
	}
	return dataset, nil
}

func parseRow(row map[string]json.RawMessage) (storage.Record, error) {
	var record storage.Record

	id, ok, err := numberField(row, "id")
	if err != nil || !ok || id <= 0 || id != float64(int64(id)) {
		return storage.Record{}, fmt.Errorf("id is missing or invalid")
	}
	record.ID = int64(id)

	name, ok := stringField(row, "name")
	if !ok || name == "" {
		return storage.Record{}, fmt.Errorf("name is missing")
	}
	record.Name = name

	year, err := yearField(row)
	if err != nil {
		return storage.Record{}, err
	}
	record.Year = year

	mass, ok, err := numberField(row, "mass")
	if err != nil || !ok || mass <= 0 {
		return storage.Record{}, fmt.Errorf("mass is missing or invalid")
	}
	record.Mass = mass

	if class, ok := stringField(row, "recclass"); ok && class != "" && !strings.EqualFold(class, "null") {
		record.Class = &class
	}
	if lat, ok, err := numberField(row, "reclat"); err == nil && ok {
		record.Lat = &lat
	}
	if long, ok, err := numberField(row, "reclong"); err == nil && ok {
		record.Long = &long
	}
	return record, record.Validate()
}

// yearField accepts an integer or a "YYYY-..." timestamp.
func yearField(row map[string]json.RawMessage) (int, error) {
	if raw, ok := stringField(row, "year"); ok {
		head, _, _ := strings.Cut(raw, "-")
		year, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil || head == "" {
			return 0, fmt.Errorf("year %q is invalid", raw)
		}
		return year, nil
	}
	value, ok, err := numberField(row, "year")
	if err != nil || !ok || value != float64(int(value)) {
		return 0, fmt.Errorf("year is missing or invalid")
	}
	return int(value), nil
}

func stringField(row map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := row[key]
	if !ok {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// numberField reads a JSON number or a numeric string. ok is false when the
// key is absent, null or an empty string.
func numberField(row map[string]json.RawMessage, key string) (float64, bool, error) {
	raw, ok := row[key]
	if !ok || string(raw) == "null" {
		return 0, false, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}
