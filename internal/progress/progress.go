package progress

import "time"

// Stage identifies which pipeline stage is active.
type Stage string

const (
	StageIngest     Stage = "ingest"
	StageScript     Stage = "script"
	StageSegment    Stage = "segment"
	StageTTS        Stage = "tts"
	StageBackground Stage = "background"
	StageAssembly   Stage = "assembly"
	StagePublish    Stage = "publish"
	StageComplete   Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage        Stage
	Message      string
	Percent      float64 // 0.0–1.0
	SegmentNum   int
	SegmentTotal int
	Elapsed      time.Duration
	Error        error
	// OutputFile is set on StageComplete with the final file path.
	OutputFile string
	// Duration is the episode length, set on StageComplete.
	Duration time.Duration
	// SizeBytes is the output file size, set on StageComplete.
	SizeBytes int64
	// Failures counts utterances skipped during synthesis.
	Failures int
	// Provider names the script generator that produced the transcript.
	Provider string
	// Background is where the music bed came from.
	Background string
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// stageWeights splits the bar between stages; synthesis dominates.
var stageWeights = []struct {
	stage Stage
	start float64
	end   float64
}{
	{StageIngest, 0, 0.05},
	{StageScript, 0.05, 0.15},
	{StageSegment, 0.15, 0.18},
	{StageTTS, 0.18, 0.85},
	{StageBackground, 0.85, 0.88},
	{StageAssembly, 0.88, 0.97},
	{StagePublish, 0.97, 1},
	{StageComplete, 1, 1},
}

// Overall maps progress within a stage (0–1) to progress of the whole run.
func Overall(stage Stage, within float64) float64 {
	if within < 0 {
		within = 0
	}
	if within > 1 {
		within = 1
	}
	for _, w := range stageWeights {
		if w.stage == stage {
			return w.start + (w.end-w.start)*within
		}
	}
	return 0
}
