package pagelens

import "sort"

// Merge flattens the records of all chunk results into one list, dropping
// duplicates that overlapping chunk regions typically produce and ordering
// the remainder by severity.
//
// Duplicate identity is the composite (kind, original, suggestion); the
// first occurrence wins. The sort is stable, so records of equal severity
// keep their flattened order.
func Merge(results []ChunkResult) []Record {
	var merged []Record
	seen := make(map[string]struct{})
	for _, res := range results {
		for _, rec := range res.Records {
			key := rec.dedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, rec)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Severity.Rank() < merged[j].Severity.Rank()
	})
	return merged
}
