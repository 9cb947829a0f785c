package brc

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsMapUpdate(t *testing.T) {
	m := NewStatsMap(nil, 0)
	key := []byte("Hamburg")
	m.Update(key, 120)
	key[0] = 'X' // the map keeps its own copy
	m.Update([]byte("Hamburg"), -35)
	m.Update([]byte("Hamburg"), 400)
	m.Update([]byte("Bulawayo"), 89)

	assert.Equal(t, 2, m.Len())
	h := m.Get("Hamburg")
	require.NotNil(t, h)
	assert.EqualValues(t, -35, h.Min)
	assert.EqualValues(t, 400, h.Max)
	assert.EqualValues(t, 485, h.Sum)
	assert.EqualValues(t, 3, h.Count)
	assert.Nil(t, m.Get("Xamburg"))

	b := m.Get("Bulawayo")
	require.NotNil(t, b)
	assert.EqualValues(t, 89, b.Min)
	assert.EqualValues(t, 89, b.Max)
	assert.EqualValues(t, 1, b.Count)
}

// A constant hash puts every key in one bucket, names must still be kept apart.
func TestStatsMapCollisions(t *testing.T) {
	m := NewStatsMap(func([]byte) uint64 { return 42 }, 0)
	for i := 0; i < 50; i++ {
		m.Update([]byte(fmt.Sprintf("key-%02d", i%10)), int32(i))
	}
	assert.Equal(t, 10, m.Len())
	for i := 0; i < 10; i++ {
		a := m.Get(fmt.Sprintf("key-%02d", i))
		require.NotNil(t, a)
		assert.EqualValues(t, 5, a.Count)
		assert.EqualValues(t, i, a.Min)
		assert.EqualValues(t, i+40, a.Max)
	}

	merged := Merge([]*StatsMap{m, m})
	assert.Equal(t, 10, merged.Len())
	assert.EqualValues(t, 10, merged.Get("key-03").Count)
}

func TestStatsMapSorted(t *testing.T) {
	m := NewStatsMap(getXXH3FromBytes, 4)
	for _, name := range []string{"b", "Zürich", "a", "Abéché", "ab", "Z"} {
		m.Update([]byte(name), 0)
	}
	var names []string
	for _, a := range m.Sorted() {
		names = append(names, string(a.Name))
	}
	assert.Equal(t, []string{"Abéché", "Z", "Zürich", "a", "ab", "b"}, names)
}

func TestAggregateMean(t *testing.T) {
	for _, tc := range []struct {
		sum   int64
		count uint64
		tenth int64
	}{
		{sum: 40, count: 2, tenth: 20},
		{sum: -25, count: 1, tenth: -25},
		{sum: 5, count: 2, tenth: 3},   // 2.5 => 3
		{sum: -5, count: 2, tenth: -2}, // -2.5 => -2
		{sum: -1, count: 3, tenth: 0},
		{sum: 0, count: 0, tenth: 0},
	} {
		a := Aggregate{Sum: tc.sum, Count: tc.count}
		assert.Equal(t, tc.tenth, a.MeanTenths(), "%+v", tc)
	}
}

func randomStatsMaps(rng *rand.Rand, n int) ([]*StatsMap, *StatsMap) {
	all := NewStatsMap(nil, 0)
	maps := make([]*StatsMap, n)
	for i := range maps {
		maps[i] = NewStatsMap(nil, 0)
		for j := rng.Intn(200); j > 0; j-- {
			name := []byte(sampleNames[rng.Intn(len(sampleNames))])
			temp := int32(rng.Intn(1999) - 999)
			maps[i].Update(name, temp)
			all.Update(name, temp)
		}
	}
	return maps, all
}

func assertSameStats(t *testing.T, expected, computed *StatsMap) {
	t.Helper()
	require.Equal(t, expected.Len(), computed.Len())
	expected.Each(func(e *Aggregate) {
		c := computed.Get(string(e.Name))
		require.NotNil(t, c, string(e.Name))
		assert.Equal(t, e.Min, c.Min, string(e.Name))
		assert.Equal(t, e.Max, c.Max, string(e.Name))
		assert.Equal(t, e.Sum, c.Sum, string(e.Name))
		assert.Equal(t, e.Count, c.Count, string(e.Name))
	})
}

func TestMergeOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	maps, all := randomStatsMaps(rng, 7)
	merged := Merge(maps)
	assertSameStats(t, all, merged)
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(maps), func(i, j int) { maps[i], maps[j] = maps[j], maps[i] })
		assertSameStats(t, merged, Merge(maps))
	}
}

func TestMergeDoesNotAliasPartials(t *testing.T) {
	a := NewStatsMap(nil, 0)
	a.Update([]byte("x"), 10)
	merged := Merge([]*StatsMap{a})
	a.Update([]byte("x"), 500)
	assert.EqualValues(t, 10, merged.Get("x").Max)
	assert.EqualValues(t, 1, merged.Get("x").Count)
}

func TestMergeEmpty(t *testing.T) {
	assert.Zero(t, Merge(nil).Len())
	assert.Zero(t, Merge([]*StatsMap{nil, NewStatsMap(nil, 0)}).Len())

	one := NewStatsMap(nil, 0)
	one.Update([]byte("k"), -1)
	merged := Merge([]*StatsMap{NewStatsMap(nil, 0), one, NewStatsMap(nil, 0)})
	assert.Equal(t, 1, merged.Len())
	assert.EqualValues(t, -1, merged.Get("k").Sum)
}

func BenchmarkStatsMapUpdate(b *testing.B) {
	keys := make([][]byte, 0, 10000)
	for i := 0; i < cap(keys); i++ {
		keys = append(keys, []byte(fmt.Sprintf("station-%d", i)))
	}
	for _, hashType := range BrcHashList {
		hasher, _ := NewHasher(hashType)
		b.Run(string(hashType), func(b *testing.B) {
			m := NewStatsMap(hasher, 1024)
			for i := 0; i < b.N; i++ {
				m.Update(keys[i%len(keys)], int32(i%1999-999))
			}
		})
	}
}
