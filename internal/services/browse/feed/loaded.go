// Package feed holds the client-side browsing state for the meteor catalog:
// the loaded record set, the scroll and partition drivers, the mass filter
// with its fallback, and the Session that serializes them on one goroutine.
package feed

import "github.com/louisbranch/meteorfall/internal/services/catalog/api/wire"

// Record is one meteorite fall as delivered by the catalog API.
type Record = wire.Record

// PartitionSummary is one year key with the maximum mass recorded in it.
type PartitionSummary = wire.PartitionSummary

// Mode tells where the active records come from. It is either Incremental
// or Partition.
type Mode interface {
	isMode()
}

// Incremental is the paged feed over the whole catalog.
type Incremental struct {
	NextOffset    int
	MoreAvailable bool
}

// Partition is the complete record set of a single year.
type Partition struct {
	Key    int
	Loaded bool
}

func (Incremental) isMode() {}
func (Partition) isMode()   {}

// LoadedSet owns the records fetched so far. The incremental feed is kept
// while a partition is active so clearing the partition shows it again.
type LoadedSet struct {
	feed []Record
	more bool

	partition        *Partition
	partitionRecords []Record
}

// NewLoadedSet returns an empty set in incremental mode at offset 0.
func NewLoadedSet() *LoadedSet {
	return &LoadedSet{more: true}
}

// Mode reports the current mode.
func (s *LoadedSet) Mode() Mode {
	if s.partition != nil {
		return *s.partition
	}
	return Incremental{NextOffset: len(s.feed), MoreAvailable: s.more}
}

// Incremental reports whether the set is in incremental mode.
func (s *LoadedSet) Incremental() bool {
	return s.partition == nil
}

// ActivePartition returns the selected key, if any.
func (s *LoadedSet) ActivePartition() (key int, ok bool) {
	if s.partition == nil {
		return 0, false
	}
	return s.partition.Key, true
}

// PartitionLoaded reports whether the active partition has received its
// records.
func (s *LoadedSet) PartitionLoaded() bool {
	return s.partition != nil && s.partition.Loaded
}

// NextOffset is the number of records appended to the incremental feed.
func (s *LoadedSet) NextOffset() int {
	return len(s.feed)
}

// MoreAvailable is false once the catalog returned an empty page, until the
// next partition round trip.
func (s *LoadedSet) MoreAvailable() bool {
	return s.more
}

// Records returns the records of the active mode. The slice is shared with
// the set and must not be modified.
func (s *LoadedSet) Records() []Record {
	if s.partition != nil {
		return s.partitionRecords
	}
	return s.feed
}

func (s *LoadedSet) appendPage(records []Record) {
	s.feed = append(s.feed, records...)
}

func (s *LoadedSet) exhaust() {
	s.more = false
}

func (s *LoadedSet) enterPartition(key int) {
	s.partition = &Partition{Key: key}
	s.partitionRecords = nil
}

func (s *LoadedSet) fillPartition(records []Record) {
	if s.partition == nil {
		return
	}
	s.partitionRecords = append([]Record(nil), records...)
	s.partition.Loaded = true
}

// leavePartition returns to the feed and allows it to fetch past the
// accumulated offset again.
func (s *LoadedSet) leavePartition() {
	s.partition = nil
	s.partitionRecords = nil
	s.more = true
}
