package scheduler_test

import (
	"reflect"
	"testing"

	"orthopipe/internal/scheduler"
	"orthopipe/internal/species"
)

func freshSet(counts ...int) *species.Set {
	set := &species.Set{
		NAll:     len(counts),
		FirstNew: 0,
		Counts:   make(map[int]int, len(counts)),
	}
	for id, n := range counts {
		set.ToUse = append(set.ToUse, id)
		set.Counts[id] = n
	}
	return set
}

func incrementalSet(firstNew int, counts ...int) *species.Set {
	set := freshSet(counts...)
	set.FirstNew = firstNew
	return set
}

func TestBuildJobsTwoSpeciesTwoWayOrdering(t *testing.T) {
	// A has 3 sequences, B has 5; longest-first with ties broken by
	// enumeration order.
	jobs := scheduler.BuildJobs(freshSet(3, 5), true)

	want := []scheduler.WorkOrder{
		{Query: 1, Target: 1, Cost: 25},
		{Query: 0, Target: 1, Cost: 15},
		{Query: 1, Target: 0, Cost: 15},
		{Query: 0, Target: 0, Cost: 9},
	}
	if !reflect.DeepEqual(jobs, want) {
		t.Fatalf("jobs = %+v\nwant %+v", jobs, want)
	}
}

func TestBuildJobsCountsFreshRun(t *testing.T) {
	n := 4
	set := freshSet(10, 20, 30, 40)

	twoWay := scheduler.BuildJobs(set, true)
	if len(twoWay) != n*n {
		t.Fatalf("two-way job count = %d, want %d", len(twoWay), n*n)
	}

	oneWay := scheduler.BuildJobs(set, false)
	if len(oneWay) != n*(n+1)/2 {
		t.Fatalf("one-way job count = %d, want %d", len(oneWay), n*(n+1)/2)
	}
	for _, j := range oneWay {
		if j.Query > j.Target {
			t.Fatalf("one-way job has query > target: %+v", j)
		}
	}
}

func TestBuildJobsIncrementalExcludesPreviousPairs(t *testing.T) {
	// Two previous species (ids 0, 1), two new ones (ids 2, 3).
	set := incrementalSet(2, 5, 5, 5, 5)
	jobs := scheduler.BuildJobs(set, true)

	// |new|^2 + 2*|new|*|prev| = 4 + 8.
	if len(jobs) != 12 {
		t.Fatalf("incremental job count = %d, want 12", len(jobs))
	}
	for _, j := range jobs {
		if j.Query < set.FirstNew && j.Target < set.FirstNew {
			t.Fatalf("previous-vs-previous pair scheduled: %+v", j)
		}
	}
}

func TestBuildJobsIncrementalOneWay(t *testing.T) {
	set := incrementalSet(2, 5, 5, 5, 5)
	jobs := scheduler.BuildJobs(set, false)

	// New-vs-new triangular (3) plus previous-vs-new (4); the
	// new-vs-previous band is entirely filtered out by query <= target.
	if len(jobs) != 7 {
		t.Fatalf("incremental one-way job count = %d, want 7", len(jobs))
	}
	for _, j := range jobs {
		if j.Query > j.Target {
			t.Fatalf("one-way job has query > target: %+v", j)
		}
	}
}

func TestBuildJobsCostNonIncreasing(t *testing.T) {
	jobs := scheduler.BuildJobs(freshSet(7, 3, 11, 2, 9), true)
	for i := 1; i < len(jobs); i++ {
		if jobs[i].Cost > jobs[i-1].Cost {
			t.Fatalf("cost increases at %d: %+v then %+v", i, jobs[i-1], jobs[i])
		}
	}
}
