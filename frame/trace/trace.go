package trace

// TraceLevel controls the verbosity of frame tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelFrames captures one record per terminated frame.
	TraceLevelFrames TraceLevel = "frames"
	// TraceLevelPredictions additionally captures predictor snapshots after each presented frame.
	TraceLevelPredictions TraceLevel = "predictions"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:        true,
	TraceLevelFrames:      true,
	TraceLevelPredictions: true,
	"":                    true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// Enabled reports whether frame records are collected.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelFrames || c.Level == TraceLevelPredictions
}

// PredictionsEnabled reports whether predictor snapshots are collected.
func (c TraceConfig) PredictionsEnabled() bool {
	return c.Level == TraceLevelPredictions
}

// FrameTrace collects frame records during a pipeline run.
type FrameTrace struct {
	Config      TraceConfig
	Frames      []FrameRecord
	Predictions []PredictionRecord
}

// NewFrameTrace creates a FrameTrace ready for recording.
func NewFrameTrace(config TraceConfig) *FrameTrace {
	return &FrameTrace{
		Config:      config,
		Frames:      make([]FrameRecord, 0),
		Predictions: make([]PredictionRecord, 0),
	}
}

// RecordFrame appends a frame record.
func (ft *FrameTrace) RecordFrame(record FrameRecord) {
	ft.Frames = append(ft.Frames, record)
}

// RecordPrediction appends a predictor snapshot.
func (ft *FrameTrace) RecordPrediction(record PredictionRecord) {
	ft.Predictions = append(ft.Predictions, record)
}
