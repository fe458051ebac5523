package metrics

import "sort"

// ErrorBucket is the failure count of one error type for one operation.
type ErrorBucket struct {
	Op    string `json:"op"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// FlattenErrorBuckets converts a nested op->type map into rows sorted by
// descending count, then by op and type for stability.
func FlattenErrorBuckets(buckets map[string]map[string]int) []ErrorBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]ErrorBucket, 0)
	for op, types := range buckets {
		for name, count := range types {
			rows = append(rows, ErrorBucket{Op: op, Type: name, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Op == rows[j].Op {
				return rows[i].Type < rows[j].Type
			}
			return rows[i].Op < rows[j].Op
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// MergeErrorBuckets sums several op->type maps into a new one.
func MergeErrorBuckets(all ...map[string]map[string]int) map[string]map[string]int {
	var merged map[string]map[string]int
	for _, buckets := range all {
		for op, types := range buckets {
			if merged == nil {
				merged = make(map[string]map[string]int)
			}
			inner, ok := merged[op]
			if !ok {
				inner = make(map[string]int, len(types))
				merged[op] = inner
			}
			for name, count := range types {
				inner[name] += count
			}
		}
	}
	return merged
}
