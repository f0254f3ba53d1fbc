package processor

import (
	"sort"
)

// dayBucket accumulates one calendar day's readings during an aggregation pass
type dayBucket struct {
	units    []float64
	costs    []float64
	voltages []float64
}

// DayIndex groups readings by ISO day key ("2006-01-02").
//
// Arrival order is kept within a bucket. Keys are returned in ascending
// order, which is chronological because ISO day strings sort lexically.
type DayIndex struct {
	buckets map[string]*dayBucket
}

// NewDayIndex creates an empty index
func NewDayIndex() *DayIndex {
	return &DayIndex{buckets: make(map[string]*dayBucket)}
}

// Add appends a reading to the bucket of dateKey. A nil voltage is not recorded.
func (d *DayIndex) Add(dateKey string, units, cost float64, voltage *float64) {
	bucket, exists := d.buckets[dateKey]
	if !exists {
		bucket = &dayBucket{}
		d.buckets[dateKey] = bucket
	}

	bucket.units = append(bucket.units, units)
	bucket.costs = append(bucket.costs, cost)
	if voltage != nil {
		bucket.voltages = append(bucket.voltages, *voltage)
	}
}

// Len returns the number of distinct days
func (d *DayIndex) Len() int {
	return len(d.buckets)
}

// Keys returns the day keys sorted ascending
func (d *DayIndex) Keys() []string {
	keys := make([]string, 0, len(d.buckets))
	for key := range d.buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (d *DayIndex) bucket(dateKey string) *dayBucket {
	return d.buckets[dateKey]
}
