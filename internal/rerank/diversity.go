// Package rerank provides post-ranking reordering passes that enforce
// diversity constraints on an already score-sorted item list.
package rerank

import (
	"github.com/jasperfordesq-ai/nexus-relevance/internal/scored"
)

// ByAuthor reorders items so that no more than maxConsecutive items in
// a row share the same author. Items that would breach the limit are
// deferred, their score multiplied by penalty, and then reinserted at
// the first position where a local window of maxConsecutive neighbors
// contains no item by the same author. Items with no safe position are
// appended at the end.
//
// The pass is greedy and best-effort: it guarantees the no-long-run
// property whenever a valid reinsertion point exists, not a globally
// optimal ordering. Running it on an already-compliant list returns the
// list unchanged.
func ByAuthor(items []*scored.Item, maxConsecutive int, penalty float64) []*scored.Item {
	return reorder(items, maxConsecutive, func(it *scored.Item) string {
		return it.AuthorID
	}, penalty, true)
}

// ByType reorders items so that no more than maxConsecutive items in a
// row share the same content type. Unlike ByAuthor it applies no score
// penalty; type diversity is purely positional.
func ByType(items []*scored.Item, maxConsecutive int) []*scored.Item {
	return reorder(items, maxConsecutive, func(it *scored.Item) string {
		return it.ContentType
	}, 1.0, false)
}

func reorder(items []*scored.Item, maxConsecutive int, key func(*scored.Item) string, penalty float64, penalize bool) []*scored.Item {
	if maxConsecutive < 1 || len(items) == 0 {
		return items
	}

	accepted := make([]*scored.Item, 0, len(items))
	var deferred []*scored.Item

	for _, it := range items {
		if trailingRun(accepted, key, key(it), maxConsecutive) >= maxConsecutive {
			d := it
			if penalize {
				d = it.Clone()
				d.Score *= penalty
			}
			deferred = append(deferred, d)
			continue
		}
		accepted = append(accepted, it)
	}

	for _, d := range deferred {
		accepted = reinsert(accepted, d, key, maxConsecutive)
	}

	return accepted
}

// trailingRun counts how many of the last items in accepted, up to
// limit, share the given key. The count stops at the first differing
// item since only consecutive runs matter.
func trailingRun(accepted []*scored.Item, key func(*scored.Item) string, k string, limit int) int {
	run := 0
	for i := len(accepted) - 1; i >= 0 && run < limit; i-- {
		if key(accepted[i]) != k {
			break
		}
		run++
	}
	return run
}

// reinsert places a deferred item at the first index whose local window
// holds no item with the same key. The window spans maxConsecutive
// items to either side of the insertion point, which is stricter than
// the run-length invariant itself but keeps the check cheap and local.
func reinsert(accepted []*scored.Item, d *scored.Item, key func(*scored.Item) string, maxConsecutive int) []*scored.Item {
	k := key(d)
	for i := 0; i <= len(accepted); i++ {
		lo := i - maxConsecutive + 1
		if lo < 0 {
			lo = 0
		}
		hi := i + maxConsecutive
		if hi > len(accepted) {
			hi = len(accepted)
		}

		safe := true
		for j := lo; j < hi; j++ {
			if key(accepted[j]) == k {
				safe = false
				break
			}
		}
		if !safe {
			continue
		}

		accepted = append(accepted, nil)
		copy(accepted[i+1:], accepted[i:])
		accepted[i] = d
		return accepted
	}

	// No safe position; append at the end as the best-effort fallback.
	return append(accepted, d)
}

// MaxRun returns the length of the longest consecutive run of items
// sharing an author. Exposed for tests and debugging instrumentation.
func MaxRun(items []*scored.Item, key func(*scored.Item) string) int {
	longest, run := 0, 0
	prev := ""
	for i, it := range items {
		k := key(it)
		if i == 0 || k != prev {
			run = 1
		} else {
			run++
		}
		if run > longest {
			longest = run
		}
		prev = k
	}
	return longest
}
