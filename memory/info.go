// Package memory tracks the memory used by a single VM instance. An Info wraps a system allocator
// with an optional byte budget and, when leak detection is enabled, a Tracker holding one Record
// per live allocation so that anything still outstanding when the Info is destroyed can be reported.
package memory

import (
	"context"

	"github.com/byteninja/njvm/memory/system"
	"github.com/byteninja/njvm/memutils"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

// Info owns every allocation made on behalf of one VM instance. It must be destroyed with Destroy
// when the instance is torn down.
//
// Info is not safe for concurrent use.
type Info struct {
	logger *slog.Logger
	system system.Allocator
	flags  CreateFlags
	limit  int

	tracker *Tracker
	tracked int
	live    int

	calls     int
	destroyed bool
}

// New creates an Info that draws memory from sys
func New(logger *slog.Logger, sys system.Allocator, options CreateOptions) (*Info, error) {
	if logger == nil {
		return nil, errors.New("attempted to create an Info without a logger")
	}

	if sys == nil {
		return nil, errors.New("attempted to create an Info without a system allocator")
	}

	if options.Limit < 0 {
		return nil, errors.Newf("limit must be NoLimit or a positive number of bytes, but was %d", options.Limit)
	}

	info := &Info{
		logger: logger,
		system: sys,
		flags:  options.Flags,
		limit:  options.Limit,
	}

	if info.flags&InfoCreateLeakDetection != 0 {
		info.tracker = NewTracker()
	}

	if info.debugCalls() {
		logger.Debug("Info::New", slog.String("Flags", info.flags.String()), slog.Int("Limit", info.limit))
	}

	return info, nil
}

func (i *Info) debugCalls() bool {
	return memutils.DebugMemory || i.flags&InfoCreateDebugMemory != 0
}

func (i *Info) strictLeaks() bool {
	return memutils.DebugMemory || i.flags&InfoCreateStrictLeakCheck != 0
}

func (i *Info) checkAlive() {
	if i.destroyed {
		panic(errors.AssertionFailedf("attempted to use an Info after it was destroyed"))
	}
}

// Flags returns the flags the Info was created with
func (i *Info) Flags() CreateFlags {
	return i.flags
}

// Limit returns the byte budget, or NoLimit
func (i *Info) Limit() int {
	return i.limit
}

// SetLimit changes the byte budget. Allocations already outstanding are not checked against the
// new limit, even if they exceed it; only later allocations and resizes are.
func (i *Info) SetLimit(limit int) {
	if limit < 0 {
		panic(errors.AssertionFailedf("limit must be NoLimit or a positive number of bytes, but was %d", limit))
	}

	i.limit = limit
}

// Tracked returns the number of bytes currently allocated through this Info
func (i *Info) Tracked() int {
	return i.tracked
}

// Live returns the number of allocations currently outstanding
func (i *Info) Live() int {
	return i.live
}

// IsTracked returns true if leak detection is enabled and address has a record
func (i *Info) IsTracked(address Address) bool {
	if i.tracker == nil {
		return false
	}

	_, ok := i.tracker.Find(address)
	return ok
}

// Leaks returns a copy of every outstanding record, oldest first. It returns nil unless the
// Info was created with InfoCreateLeakDetection.
func (i *Info) Leaks() []Record {
	if i.tracker == nil {
		return nil
	}

	return i.tracker.Records()
}

// CallBalance returns the number of allocations minus the number of releases made through this
// Info. It is only maintained when the Info was created with InfoCreateDebugMemory or the module
// was built with the debug_njvm_memory build tag, and is zero otherwise.
func (i *Info) CallBalance() int {
	return i.calls
}

func (i *Info) Statistics() memutils.Statistics {
	var stats memutils.Statistics
	i.AddStatistics(&stats)
	return stats
}

func (i *Info) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount += i.live
	stats.BlockBytes += i.tracked + i.live*memutils.DebugMargin
	stats.AllocationCount += i.live
	stats.AllocationBytes += i.tracked
}

// AddDetailedStatistics adds this Info's allocations to stats. Allocation size minimums and
// maximums are only available when leak detection is enabled.
func (i *Info) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	if i.tracker == nil {
		i.AddStatistics(&stats.Statistics)
		return
	}

	stats.BlockCount += i.live
	stats.BlockBytes += i.tracked + i.live*memutils.DebugMargin
	i.tracker.AddDetailedStatistics(stats)
}

// BuildStatsString returns a json document describing the memory held by this Info. A detailed
// string also lists the system allocator's own statistics, if it reports any, and every
// outstanding record when leak detection is enabled.
func (i *Info) BuildStatsString(detailed bool) string {
	writer := jwriter.NewWriter()

	root := writer.Object()
	root.Name("Flags").String(i.flags.String())
	root.Name("Limit").Int(i.limit)
	root.Name("Tracked").Int(i.tracked)

	var stats memutils.DetailedStatistics
	stats.Clear()
	i.AddDetailedStatistics(&stats)

	total := root.Name("Total").Object()
	stats.PrintJSON(&total)
	total.End()

	if detailed {
		if reporter, ok := i.system.(system.StatisticsReporter); ok {
			var systemStats memutils.DetailedStatistics
			systemStats.Clear()
			reporter.AddDetailedStatistics(&systemStats)

			systemObj := root.Name("System").Object()
			systemStats.PrintJSON(&systemObj)
			systemObj.End()
		}

		if i.tracker != nil {
			allocations := root.Name("Allocations").Array()
			i.tracker.PrintJSON(&allocations)
			allocations.End()
		}
	}

	root.End()
	return string(writer.Bytes())
}

// Destroy tears down the Info. If allocations are still outstanding, each one is logged as
// unreleased memory and a *LeakError is returned; when leak detection is enabled the leaked blocks
// are then returned to the system allocator. With InfoCreateStrictLeakCheck or the debug_njvm_memory
// build tag, Destroy panics with the *LeakError after logging instead.
func (i *Info) Destroy() error {
	i.checkAlive()

	if i.debugCalls() {
		i.logger.Debug("Info::Destroy", slog.Int("Live", i.live), slog.Int("CallBalance", i.calls))
	}

	if i.live == 0 {
		i.destroyed = true
		return nil
	}

	leakErr := &LeakError{
		Count: i.live,
		Bytes: i.tracked,
	}

	if i.tracker == nil {
		i.logger.LogAttrs(context.Background(), slog.LevelError,
			"[UNRELEASED MEMORY] allocations were not released and cannot be listed without leak detection",
			slog.Int("count", i.live),
			slog.Int("size", i.tracked),
		)
	} else {
		leakErr.Leaks = i.tracker.Records()
		for _, leak := range leakErr.Leaks {
			i.logUnreleasedMemory(leak)
		}
	}

	if i.strictLeaks() {
		panic(leakErr)
	}

	var err error = leakErr
	if i.tracker != nil {
		for _, leak := range i.tracker.Drain() {
			freeErr := i.system.Free(leak.Address)
			if freeErr != nil {
				err = errors.CombineErrors(err, errors.Wrapf(freeErr, "failed to free leaked block at %s", leak.Address))
			}
		}

		i.tracked = 0
		i.live = 0
	}

	i.destroyed = true
	return err
}

func (i *Info) logUnreleasedMemory(record Record) {
	i.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unreleased allocation",
		slog.String("address", record.Address.String()),
		slog.Int("size", record.Size),
	)
}
