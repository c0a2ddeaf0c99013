// Package scheduler turns a species set into an ordered list of
// pairwise search jobs and dispatches them across a bounded worker pool
// of external processes.
package scheduler

import (
	"sort"

	"orthopipe/internal/species"
)

// WorkOrder is one pairwise search job. Cost estimates the work as the
// product of the two sequence counts; it drives the longest-job-first
// ordering that keeps a fixed pool busy until the end of the batch.
type WorkOrder struct {
	Query  int
	Target int
	Cost   int64
}

// BuildJobs enumerates the pairwise jobs for the species set under the
// given symmetry policy. Candidates come in three bands (new vs new,
// new vs previous, previous vs new); previous-vs-previous pairs are
// excluded because their results are what an incremental run resumes
// from. One-way policy keeps only pairs with query <= target. The union
// is sorted by descending cost; the sort is stable so ties keep the
// band-then-enumeration order.
func BuildJobs(set *species.Set, twoWay bool) []WorkOrder {
	newIDs := set.NewIDs()
	prevIDs := set.PreviousIDs()

	var orders []WorkOrder
	appendBand := func(queries, targets []int) {
		for _, q := range queries {
			for _, t := range targets {
				if !twoWay && q > t {
					continue
				}
				orders = append(orders, WorkOrder{
					Query:  q,
					Target: t,
					Cost:   int64(set.Counts[q]) * int64(set.Counts[t]),
				})
			}
		}
	}
	appendBand(newIDs, newIDs)
	appendBand(newIDs, prevIDs)
	appendBand(prevIDs, newIDs)

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Cost > orders[j].Cost
	})
	return orders
}
