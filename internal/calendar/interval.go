package calendar

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End). Used both for busy time
// reported by providers and for the free slots derived from it.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// MergeIntervals folds a set of possibly overlapping intervals into a
// minimal, non-overlapping list sorted ascending by start. Adjacent
// (touching) intervals are merged. Merging an already-minimal list returns
// an equal list.
func MergeIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// FindAvailableSlots computes the gaps of at least minMinutes between busy
// intervals within [windowStart, windowEnd). Busy intervals are clipped to
// the window; intervals fully outside are dropped. The input does not need
// to be sorted or merged: the cursor only ever advances, so overlapping and
// contained intervals are handled.
func FindAvailableSlots(busy []Interval, windowStart, windowEnd time.Time, minMinutes int) []Interval {
	clipped := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if !b.End.After(windowStart) || !b.Start.Before(windowEnd) {
			continue
		}
		if b.Start.Before(windowStart) {
			b.Start = windowStart
		}
		if b.End.After(windowEnd) {
			b.End = windowEnd
		}
		clipped = append(clipped, b)
	}
	sort.Slice(clipped, func(i, j int) bool {
		return clipped[i].Start.Before(clipped[j].Start)
	})

	minDur := time.Duration(minMinutes) * time.Minute
	var slots []Interval
	cursor := windowStart

	for _, b := range clipped {
		if b.Start.After(cursor) && b.Start.Sub(cursor) >= minDur {
			slots = append(slots, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(windowEnd) && windowEnd.Sub(cursor) >= minDur {
		slots = append(slots, Interval{Start: cursor, End: windowEnd})
	}
	return slots
}
