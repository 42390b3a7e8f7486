package feed

// PartitionRequest is a partition fetch issued by the selector.
type PartitionRequest struct {
	Ticket uint64
	Key    int
}

// PartitionSelector switches the loaded set between the incremental feed
// and a single partition. Only the latest selection may fill the set.
type PartitionSelector struct {
	seq    uint64
	ticket uint64
	key    int
}

// Pending reports whether a partition fetch is in flight.
func (p *PartitionSelector) Pending() bool {
	return p.ticket != 0
}

// Select makes key the active partition and returns the fetch to issue.
func (p *PartitionSelector) Select(set *LoadedSet, key int) PartitionRequest {
	set.enterPartition(key)
	p.seq++
	p.ticket = p.seq
	p.key = key
	return PartitionRequest{Ticket: p.ticket, Key: key}
}

// Clear returns the set to incremental mode without reloading the feed.
func (p *PartitionSelector) Clear(set *LoadedSet) {
	set.leavePartition()
	p.ticket = 0
}

// Loaded applies a partition result to the set.
func (p *PartitionSelector) Loaded(set *LoadedSet, ticket uint64, records []Record, err error) Outcome {
	if ticket == 0 || ticket != p.ticket {
		return OutcomeStale
	}
	if key, ok := set.ActivePartition(); !ok || key != p.key {
		return OutcomeStale
	}
	p.ticket = 0
	if err != nil {
		return OutcomeFailed
	}
	set.fillPartition(records)
	return OutcomeApplied
}
