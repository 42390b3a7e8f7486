// Package storage defines persistence contracts for the meteorite fall catalog.
package storage

import (
	"context"
	"errors"
)

// PageSize is the fixed number of records served per incremental page.
const PageSize = 50

var (
	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("catalog store unavailable")
	// ErrInvalidRecord indicates a record failed validation before a write.
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is one meteorite fall. Records are immutable once stored.
type Record struct {
	ID    int64
	Name  string
	Year  int
	Mass  float64
	Class *string
	Lat   *float64
	Long  *float64
}

// PartitionSummary is the heaviest mass recorded for one year.
type PartitionSummary struct {
	Year    int
	MaxMass float64
}

// RecordReader serves the two read shapes of the catalog.
type RecordReader interface {
	// ListRecords returns up to limit records ordered by (year, id), starting
	// at offset. An offset past the end returns an empty slice.
	ListRecords(ctx context.Context, offset, limit int) ([]Record, error)
	// ListRecordsByYear returns every record of one year ordered by id.
	ListRecordsByYear(ctx context.Context, year int) ([]Record, error)
}

// PartitionIndex summarizes the catalog per year.
type PartitionIndex interface {
	// ListPartitionSummaries returns one summary per distinct year, ascending.
	ListPartitionSummaries(ctx context.Context) ([]PartitionSummary, error)
}

// RecordWriter loads records into the catalog. It is only used by offline
// seeding, never by the read API.
type RecordWriter interface {
	ReplaceRecords(ctx context.Context, records []Record) error
	PutRecords(ctx context.Context, records []Record) error
}

// Validate reports whether r can be stored.
func (r Record) Validate() error {
	switch {
	case r.ID <= 0:
		return errors.Join(ErrInvalidRecord, errors.New("id must be positive"))
	case r.Name == "":
		return errors.Join(ErrInvalidRecord, errors.New("name is required"))
	case r.Mass < 0:
		return errors.Join(ErrInvalidRecord, errors.New("mass must not be negative"))
	}
	return nil
}
