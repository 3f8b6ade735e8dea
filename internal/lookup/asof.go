package lookup

import (
	"sort"
)

// Record is a time-stamped row keyed by census tract.
type Record struct {
	Key     string
	Year    int
	HasYear bool
	Fields  map[string]string
	// Row is the position of the record in its source table.
	Row int
}

// AsOfIndex groups records by normalized key, each group sorted by year. It
// is immutable after construction.
type AsOfIndex struct {
	groups   map[string][]Record
	norm     KeyNormalizer
	excluded int
	size     int
}

// NewAsOfIndex builds the index. Records without a year are excluded entirely.
// Records sharing a key and year keep their input order, so the last one wins.
func NewAsOfIndex(records []Record, norm KeyNormalizer) *AsOfIndex {
	ix := &AsOfIndex{groups: make(map[string][]Record), norm: norm}
	for _, r := range records {
		if !r.HasYear {
			ix.excluded++
			continue
		}
		key := norm.Normalize(r.Key)
		if key == "" {
			ix.excluded++
			continue
		}
		r.Key = key
		ix.groups[key] = append(ix.groups[key], r)
		ix.size++
	}
	for _, g := range ix.groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].Year < g[j].Year })
	}
	return ix
}

// LatestAsOf returns the record for key with the greatest year not after
// referenceYear. The boolean is false when no record qualifies.
func (ix *AsOfIndex) LatestAsOf(key string, referenceYear int) (Record, bool) {
	g := ix.groups[ix.norm.Normalize(key)]
	if len(g) == 0 {
		return Record{}, false
	}
	i := sort.Search(len(g), func(i int) bool { return g[i].Year > referenceYear })
	if i == 0 {
		return Record{}, false
	}
	return g[i-1], true
}

// Excluded returns how many records were dropped for a missing year or key.
func (ix *AsOfIndex) Excluded() int { return ix.excluded }

// Len returns the number of indexed records.
func (ix *AsOfIndex) Len() int { return ix.size }

// Keys returns the number of distinct keys.
func (ix *AsOfIndex) Keys() int { return len(ix.groups) }
