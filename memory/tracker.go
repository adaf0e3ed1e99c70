package memory

import (
	"github.com/byteninja/njvm/list"
	"github.com/byteninja/njvm/memory/system"
	"github.com/byteninja/njvm/memutils"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Address identifies a block handed out by an Info
type Address = system.Address

// NullAddress is never a valid block. Resizing it allocates a new block.
const NullAddress = system.NullAddress

// Record describes one live allocation made through an Info
type Record struct {
	Address Address
	Size    int

	links list.Links
}

func (r *Record) Links() *list.Links { return &r.links }

// Tracker holds one Record per live allocation, in the order the allocations were made. Records
// keep their position when they are updated, so a resized allocation is not moved to the end.
type Tracker struct {
	records *list.Arena[Record, *Record]
	list    *list.List[Record, *Record]
	bytes   int
}

var _ memutils.Validatable = &Tracker{}

// NewTracker creates an empty Tracker
func NewTracker() *Tracker {
	records := list.NewArena[Record]()
	return &Tracker{
		records: records,
		list:    list.New(records),
	}
}

// Find scans the records from oldest to newest for the one describing address
func (t *Tracker) Find(address Address) (list.Handle, bool) {
	found := list.Nil
	t.list.Visit(func(handle list.Handle, record *Record) bool {
		if record.Address == address {
			found = handle
			return false
		}
		return true
	})

	return found, found != list.Nil
}

// Append adds a record for a new allocation at the end of the tracker
func (t *Tracker) Append(address Address, size int) list.Handle {
	handle, record := t.records.New()
	record.Address = address
	record.Size = size

	t.list.Push(handle)
	t.bytes += size

	memutils.DebugValidate(t)
	return handle
}

// Get returns a copy of the record for handle
func (t *Tracker) Get(handle list.Handle) Record {
	return *t.records.Get(handle)
}

// Update points an existing record at a new address and size without changing its position
func (t *Tracker) Update(handle list.Handle, address Address, size int) {
	if !t.list.Contains(handle) {
		panic(errors.AssertionFailedf("attempted to update a record that is not in this tracker"))
	}

	record := t.records.Get(handle)
	t.bytes += size - record.Size
	record.Address = address
	record.Size = size

	memutils.DebugValidate(t)
}

// Remove unlinks a record and releases its storage, returning a copy of it
func (t *Tracker) Remove(handle list.Handle) Record {
	t.list.Unlink(handle)

	removed := *t.records.Get(handle)
	t.records.Release(handle)
	t.bytes -= removed.Size

	memutils.DebugValidate(t)
	return removed
}

// Drain removes every record, returning copies of them from oldest to newest
func (t *Tracker) Drain() []Record {
	handles := t.list.Clear()

	drained := make([]Record, 0, len(handles))
	for _, handle := range handles {
		drained = append(drained, *t.records.Get(handle))
		t.records.Release(handle)
	}
	t.bytes = 0

	return drained
}

// Records returns copies of every record from oldest to newest
func (t *Tracker) Records() []Record {
	records := make([]Record, 0, t.list.Len())
	t.list.Visit(func(handle list.Handle, record *Record) bool {
		records = append(records, *record)
		return true
	})

	return records
}

// Len returns the number of live allocations
func (t *Tracker) Len() int {
	return t.list.Len()
}

// Bytes returns the sum of the sizes of every record
func (t *Tracker) Bytes() int {
	return t.bytes
}

// IsEmpty returns true if no allocations are live
func (t *Tracker) IsEmpty() bool {
	return t.list.Len() == 0
}

// Validate checks the record list and the byte total against each other
func (t *Tracker) Validate() error {
	err := t.list.Validate()
	if err != nil {
		return err
	}

	if t.records.Len() != t.list.Len() {
		return errors.Errorf("the tracker holds %d records but only %d are in its list", t.records.Len(), t.list.Len())
	}

	actualBytes := 0
	t.list.Visit(func(handle list.Handle, record *Record) bool {
		if record.Address == NullAddress || record.Size < 1 {
			err = errors.Errorf("the record for address %s has an invalid size %d", record.Address, record.Size)
			return false
		}

		actualBytes += record.Size
		return true
	})
	if err != nil {
		return err
	}

	if actualBytes != t.bytes {
		return errors.Errorf("the tracker reports %d bytes but its records add up to %d", t.bytes, actualBytes)
	}

	return nil
}

func (t *Tracker) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	t.list.Visit(func(handle list.Handle, record *Record) bool {
		stats.AddAllocation(record.Size)
		return true
	})
}

// PrintJSON writes one object per record into an existing json array
func (t *Tracker) PrintJSON(json *jwriter.ArrayState) {
	t.list.Visit(func(handle list.Handle, record *Record) bool {
		obj := json.Object()
		defer obj.End()

		obj.Name("Address").String(record.Address.String())
		obj.Name("Size").Int(record.Size)
		return true
	})
}
