package pipeline

import (
	xxhash "github.com/cespare/xxhash/v2"
)

// Constants for the key index.
const (
	hashMapLoadFactor     = 0.75 // load factor before growing
	hashMapGrowthFactor   = 2    // growth factor on resize
	hashMapCapacityFactor = 1.3  // capacity factor for initial size
	hashMapMinCapacity    = 16
)

// keyIndex maps a rendered join key to the row indices that carry it.
// Buckets are selected with xxhash and resolved by exact key comparison.
type keyIndex struct {
	buckets  [][]keyEntry
	capacity int
	size     int
}

type keyEntry struct {
	key  string
	rows []int
}

func newKeyIndex(estimatedSize int) *keyIndex {
	capacity := nextPowerOfTwo(max(hashMapMinCapacity, int(float64(estimatedSize)*hashMapCapacityFactor)))
	return &keyIndex{
		buckets:  make([][]keyEntry, capacity),
		capacity: capacity,
	}
}

func (ki *keyIndex) bucket(key string) int {
	//nolint:gosec // capacity is a positive power of two
	return int(xxhash.Sum64String(key) & uint64(ki.capacity-1))
}

// Put records that row carries key. Rows for one key keep insertion order.
func (ki *keyIndex) Put(key string, row int) {
	idx := ki.bucket(key)
	for i := range ki.buckets[idx] {
		if ki.buckets[idx][i].key == key {
			ki.buckets[idx][i].rows = append(ki.buckets[idx][i].rows, row)
			return
		}
	}

	ki.buckets[idx] = append(ki.buckets[idx], keyEntry{key: key, rows: []int{row}})
	ki.size++

	if float64(ki.size) > float64(ki.capacity)*hashMapLoadFactor {
		ki.resize()
	}
}

// Get returns the rows recorded for key.
func (ki *keyIndex) Get(key string) ([]int, bool) {
	for _, e := range ki.buckets[ki.bucket(key)] {
		if e.key == key {
			return e.rows, true
		}
	}
	return nil, false
}

// Len returns the number of distinct keys.
func (ki *keyIndex) Len() int {
	return ki.size
}

func (ki *keyIndex) resize() {
	old := ki.buckets
	ki.capacity *= hashMapGrowthFactor
	ki.buckets = make([][]keyEntry, ki.capacity)
	for _, bucket := range old {
		for _, e := range bucket {
			idx := ki.bucket(e.key)
			ki.buckets[idx] = append(ki.buckets[idx], e)
		}
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
