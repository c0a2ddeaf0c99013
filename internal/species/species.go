// Package species implements the identity registry: stable integer ids
// for species and per-species sequence ids, persisted append-only so an
// existing id space can be extended without renumbering.
package species

// Species is one input proteome with its stable id.
type Species struct {
	ID          int
	SourceFasta string
	DisplayName string
}

// Set describes the species participating in a run. ToUse holds the
// in-use ids in increasing order; NAll is max(id)+1 and bounds the
// database-build loop; FirstNew is the incremental boundary: ids below
// it belong to a previous run whose artifacts already exist.
type Set struct {
	ToUse    []int
	NAll     int
	FirstNew int
	Counts   map[int]int
}

// NewIDs returns the in-use ids at or above the incremental boundary.
func (s *Set) NewIDs() []int {
	var ids []int
	for _, id := range s.ToUse {
		if id >= s.FirstNew {
			ids = append(ids, id)
		}
	}
	return ids
}

// PreviousIDs returns the in-use ids below the incremental boundary.
func (s *Set) PreviousIDs() []int {
	var ids []int
	for _, id := range s.ToUse {
		if id < s.FirstNew {
			ids = append(ids, id)
		}
	}
	return ids
}
