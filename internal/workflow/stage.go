// Package workflow sequences the pipeline stages and enforces the
// legal transitions between them.
package workflow

// Stage identifies one pipeline phase. Stages are ordered; a run enters
// at one stage and exits at or after it.
type Stage int

const (
	StagePrepare Stage = iota
	StageSearch
	StageCluster
	StageSequenceExport
	StageAlign
	StageTrees
	StageOrthologues
)

var stageNames = map[Stage]string{
	StagePrepare:        "prepare",
	StageSearch:         "search",
	StageCluster:        "cluster",
	StageSequenceExport: "sequence-export",
	StageAlign:          "align",
	StageTrees:          "trees",
	StageOrthologues:    "orthologues",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// covers reports whether stage falls inside the run's [entry, exit]
// window.
func (p *Plan) covers(stage Stage) bool {
	return stage >= p.Entry && stage <= p.Exit
}
