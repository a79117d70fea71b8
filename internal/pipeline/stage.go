// Package pipeline implements the staged import coordinator: it drives an
// import through the fixed processing stages, checkpointing progress in the
// import record after every stage and resuming safely after partial failure.
package pipeline

// Stage identifies one ordered step of the import pipeline. The stage name
// doubles as the import record's status value while that stage is the next
// one to run, so names must stay stable across deployments.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageParsing    Stage = "parsing"
	StageRedacting  Stage = "redacting"
	StageEmbedding  Stage = "embedding"
	StageIndexing   Stage = "indexing"
)

// stageOrder is the fixed, total order of the pipeline. The coordinator never
// skips, reorders, or parallelizes stages.
var stageOrder = []Stage{
	StageExtracting,
	StageParsing,
	StageRedacting,
	StageEmbedding,
	StageIndexing,
}

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// StageIndex returns the position of the stage named by status, if the status
// string is a stage name. A status that matches no stage (the pre-pipeline
// "uploaded" marker, or a terminal state) reports ok=false.
func StageIndex(status string) (int, bool) {
	for i, s := range stageOrder {
		if string(s) == status {
			return i, true
		}
	}
	return 0, false
}

// IsStage reports whether status names a pipeline stage.
func IsStage(status string) bool {
	_, ok := StageIndex(status)
	return ok
}
