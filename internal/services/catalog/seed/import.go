package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/meteorfall/internal/services/catalog/storage"
)

// Result summarizes one import.
type Result struct {
	Imported int
	Skipped  int
}

// Import writes dataset into writer. With replace set the catalog is cleared
// first, all in one transaction, matching a fresh bootstrap.
func Import(ctx context.Context, writer storage.RecordWriter, dataset Dataset, replace bool) (Result, error) {
	if writer == nil {
		return Result{}, errors.New("record writer is required")
	}
	if len(dataset.Records) == 0 && !replace {
		return Result{Skipped: len(dataset.Skipped)}, nil
	}
	write := writer.PutRecords
	if replace {
		write = writer.ReplaceRecords
	}
	if err := write(ctx, dataset.Records); err != nil {
		return Result{}, fmt.Errorf("write records: %w", err)
	}
	return Result{Imported: len(dataset.Records), Skipped: len(dataset.Skipped)}, nil
}
