package brc

import (
	"bytes"
	"math"
	"slices"

	"github.com/dolthub/swiss"
)

// Aggregate holds the running statistics of one key. Temperatures are
// kept in tenths, only the accessors convert back to decimal.
type Aggregate struct {
	Name  []byte
	Min   int32
	Max   int32
	Sum   int64
	Count uint64

	next *Aggregate // same hash, different name
}

func (a *Aggregate) MinValue() float64 { return float64(a.Min) / 10 }
func (a *Aggregate) MaxValue() float64 { return float64(a.Max) / 10 }
func (a *Aggregate) SumValue() float64 { return float64(a.Sum) / 10 }

// Mean is not rounded, the report uses MeanTenths.
func (a *Aggregate) Mean() float64 {
	if a.Count == 0 {
		return 0
	}
	return float64(a.Sum) / float64(a.Count) / 10
}

// MeanTenths is the mean in tenths, rounded half toward positive infinity.
func (a *Aggregate) MeanTenths() int64 {
	if a.Count == 0 {
		return 0
	}
	return int64(math.Floor(float64(a.Sum)/float64(a.Count) + 0.5))
}

func (a *Aggregate) add(temp int32) {
	if temp < a.Min {
		a.Min = temp
	}
	if temp > a.Max {
		a.Max = temp
	}
	a.Sum += int64(temp)
	a.Count++
}

func (a *Aggregate) merge(o *Aggregate) {
	if o.Min < a.Min {
		a.Min = o.Min
	}
	if o.Max > a.Max {
		a.Max = o.Max
	}
	a.Sum += o.Sum
	a.Count += o.Count
}

// StatsMap maps a key to its Aggregate. Buckets are found by hash in a
// swiss table and names are compared inside the bucket, so hash
// collisions never merge two keys. A StatsMap is not safe for concurrent use.
type StatsMap struct {
	hasher  Hasher
	buckets *swiss.Map[uint64, *Aggregate]
	size    int
}

func NewStatsMap(hasher Hasher, sizeHint int) *StatsMap {
	if hasher == nil {
		hasher = getHashFromBytes
	}
	return &StatsMap{
		hasher:  hasher,
		buckets: swiss.NewMap[uint64, *Aggregate](uint32(max(sizeHint, 8))),
	}
}

// Update records one observation of key. The name is copied on insert
// only, the caller may reuse key afterwards.
func (m *StatsMap) Update(key []byte, temp int32) {
	hash := m.hasher(key)
	head, ok := m.buckets.Get(hash)
	for v := head; ok && v != nil; v = v.next {
		if bytes.Equal(v.Name, key) {
			v.add(temp)
			return
		}
	}
	r := &Aggregate{
		Name:  make([]byte, len(key)),
		Min:   temp,
		Max:   temp,
		Sum:   int64(temp),
		Count: 1,
		next:  head,
	}
	copy(r.Name, key)
	m.buckets.Put(hash, r)
	m.size++
}

// mergeAggregate folds o into m. o is copied, never linked.
func (m *StatsMap) mergeAggregate(o *Aggregate) {
	hash := m.hasher(o.Name)
	head, ok := m.buckets.Get(hash)
	for v := head; ok && v != nil; v = v.next {
		if bytes.Equal(v.Name, o.Name) {
			v.merge(o)
			return
		}
	}
	r := *o
	r.Name = append([]byte(nil), o.Name...)
	r.next = head
	m.buckets.Put(hash, &r)
	m.size++
}

// Get returns the aggregate of key, nil if the key was never seen.
func (m *StatsMap) Get(key string) *Aggregate {
	hash := m.hasher([]byte(key))
	head, ok := m.buckets.Get(hash)
	for v := head; ok && v != nil; v = v.next {
		if string(v.Name) == key {
			return v
		}
	}
	return nil
}

func (m *StatsMap) Len() int { return m.size }

// Each calls fn for every aggregate in no particular order.
func (m *StatsMap) Each(fn func(a *Aggregate)) {
	m.buckets.Iter(func(_ uint64, head *Aggregate) bool {
		for v := head; v != nil; v = v.next {
			fn(v)
		}
		return false
	})
}

// Sorted returns all aggregates ordered by name bytes.
func (m *StatsMap) Sorted() []*Aggregate {
	stationLst := make([]*Aggregate, 0, m.size)
	m.Each(func(a *Aggregate) {
		stationLst = append(stationLst, a)
	})
	slices.SortFunc(stationLst, func(a *Aggregate, b *Aggregate) int {
		return bytes.Compare(a.Name, b.Name)
	})
	return stationLst
}

// Merge folds every partial map into a new one. The result is sized to
// the largest partial and grows from there; aggregates are copied so the
// partials may be dropped or reused. Folding order does not change the
// result.
func Merge(allStationMaps []*StatsMap) *StatsMap {
	var hasher Hasher
	sizeHint := 0
	for _, m := range allStationMaps {
		if m == nil {
			continue
		}
		if hasher == nil {
			hasher = m.hasher
		}
		sizeHint = max(sizeHint, m.Len())
	}
	baseMap := NewStatsMap(hasher, sizeHint)
	for _, m := range allStationMaps {
		if m == nil {
			continue
		}
		m.Each(baseMap.mergeAggregate)
	}
	return baseMap
}
