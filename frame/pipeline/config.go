package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/framelat/frame"
	"github.com/inference-sim/framelat/frame/trace"
)

// Config describes a synthetic pipeline run, loadable from a YAML file.
// Fields absent from the YAML keep their DefaultConfig values.
type Config struct {
	Seed               int64                     `yaml:"seed"`
	Frames             int                       `yaml:"frames"`
	FrameIntervalUs    int64                     `yaml:"frame_interval_us"`
	MaxOwnedDependents int                       `yaml:"max_owned_dependents"`
	TraceLevel         string                    `yaml:"trace_level"`
	Stages             map[string]DurationConfig `yaml:"stages"`
	Outcomes           OutcomeConfig             `yaml:"outcomes"`
	Input              InputConfig               `yaml:"input"`
	PartialUpdate      PartialUpdateConfig       `yaml:"partial_update"`
	Breakdown          BreakdownConfig           `yaml:"breakdown"`
	Predictors         PredictorConfig           `yaml:"predictors"`
}

// DurationConfig is a normal distribution in microseconds, clamped at zero.
type DurationConfig struct {
	MeanUs  float64 `yaml:"mean_us"`
	StdevUs float64 `yaml:"stdev_us"`
}

// OutcomeConfig sets how frames terminate. Frames that are neither dropped nor
// superseded are presented.
type OutcomeConfig struct {
	DropProbability      float64 `yaml:"drop_probability"`
	SupersedeProbability float64 `yaml:"supersede_probability"`
	// MainFrameProbability is the chance a frame runs the main-thread stages
	// (SendBeginMainFrameToCommit through Activation).
	MainFrameProbability float64 `yaml:"main_frame_probability"`
}

// InputConfig controls the input events attached to frames.
type InputConfig struct {
	EventProbability  float64 `yaml:"event_probability"`
	MaxEventsPerFrame int     `yaml:"max_events_per_frame"`
	// MainThreadProbability is the chance an event is also dispatched to the main thread.
	MainThreadProbability float64 `yaml:"main_thread_probability"`
	// Dispatch holds one distribution per dispatch phase.
	Dispatch []DurationConfig `yaml:"dispatch"`
}

// PartialUpdateConfig controls partial-update chains.
type PartialUpdateConfig struct {
	// Probability is the chance a frame reuses the current decider's update.
	Probability float64 `yaml:"probability"`
	// AdoptProbability is the chance the decider takes ownership of such a frame.
	AdoptProbability float64 `yaml:"adopt_probability"`
}

// BreakdownConfig controls how often frames carry breakdowns.
type BreakdownConfig struct {
	SubPhaseProbability   float64 `yaml:"sub_phase_probability"`
	MainThreadProbability float64 `yaml:"main_thread_probability"`
	// PresentationDelayUs is how long after termination the display reports presentation.
	PresentationDelayUs DurationConfig `yaml:"presentation_delay"`
}

// PredictorConfig seeds the predictors from earlier snapshots. Empty means start unset.
type PredictorConfig struct {
	Stage    []int64 `yaml:"stage"`
	Dispatch []int64 `yaml:"dispatch"`
}

// DefaultConfig returns a 60Hz pipeline with mostly presented frames.
func DefaultConfig() Config {
	return Config{
		Seed:               42,
		Frames:             600,
		FrameIntervalUs:    16667,
		MaxOwnedDependents: frame.MaxOwnedPartialUpdateDependents,
		TraceLevel:         string(trace.TraceLevelFrames),
		Stages: map[string]DurationConfig{
			frame.BeginImplFrameToSendBeginMainFrame.String():                 {MeanUs: 400, StdevUs: 100},
			frame.SendBeginMainFrameToCommit.String():                         {MeanUs: 4000, StdevUs: 1500},
			frame.Commit.String():                                             {MeanUs: 800, StdevUs: 200},
			frame.EndCommitToActivation.String():                              {MeanUs: 1200, StdevUs: 400},
			frame.Activation.String():                                         {MeanUs: 300, StdevUs: 100},
			frame.EndActivateToSubmitCompositorFrame.String():                 {MeanUs: 1500, StdevUs: 500},
			frame.SubmitCompositorFrameToPresentationCompositorFrame.String(): {MeanUs: 6000, StdevUs: 2000},
		},
		Outcomes: OutcomeConfig{
			DropProbability:      0.05,
			SupersedeProbability: 0.02,
			MainFrameProbability: 0.6,
		},
		Input: InputConfig{
			EventProbability:      0.5,
			MaxEventsPerFrame:     3,
			MainThreadProbability: 0.5,
			Dispatch: []DurationConfig{
				{MeanUs: 300, StdevUs: 100},
				{MeanUs: 200, StdevUs: 50},
				{MeanUs: 400, StdevUs: 150},
				{MeanUs: 1000, StdevUs: 500},
				{MeanUs: 2000, StdevUs: 800},
			},
		},
		PartialUpdate: PartialUpdateConfig{
			Probability:      0.1,
			AdoptProbability: 0.8,
		},
		Breakdown: BreakdownConfig{
			SubPhaseProbability:   0.9,
			MainThreadProbability: 0.7,
			PresentationDelayUs:   DurationConfig{MeanUs: 500, StdevUs: 200},
		},
	}
}

// LoadConfig reads a YAML pipeline configuration on top of DefaultConfig.
// Unknown fields are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline config: %w", err)
	}
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing pipeline config %s: %w", path, err)
	}
	return &cfg, nil
}

// StageDuration returns the configured distribution for s.
func (c *Config) StageDuration(s frame.Stage) DurationConfig {
	return c.Stages[s.String()]
}

// Validate reports every invalid field in one error.
func (c *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	checkProbability := func(name string, p float64) {
		if math.IsNaN(p) || p < 0 || p > 1 {
			addf("%s must be in [0, 1], got %v", name, p)
		}
	}
	checkDuration := func(name string, d DurationConfig) {
		if math.IsNaN(d.MeanUs) || d.MeanUs < 0 {
			addf("%s.mean_us must be >= 0, got %v", name, d.MeanUs)
		}
		if math.IsNaN(d.StdevUs) || d.StdevUs < 0 {
			addf("%s.stdev_us must be >= 0, got %v", name, d.StdevUs)
		}
	}

	if c.Frames <= 0 {
		addf("frames must be > 0, got %d", c.Frames)
	}
	if c.FrameIntervalUs <= 0 {
		addf("frame_interval_us must be > 0, got %d", c.FrameIntervalUs)
	}
	if c.MaxOwnedDependents < 0 {
		addf("max_owned_dependents must be >= 0, got %d", c.MaxOwnedDependents)
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		addf("unknown trace_level %q", c.TraceLevel)
	}

	known := make(map[string]bool, frame.NumStages)
	for _, s := range frame.Stages() {
		known[s.String()] = true
	}
	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !known[name] {
			addf("unknown stage %q", name)
			continue
		}
		checkDuration("stages."+name, c.Stages[name])
	}
	for _, s := range frame.Stages() {
		if _, ok := c.Stages[s.String()]; !ok {
			addf("stages.%s is missing", s)
		}
	}

	checkProbability("outcomes.drop_probability", c.Outcomes.DropProbability)
	checkProbability("outcomes.supersede_probability", c.Outcomes.SupersedeProbability)
	checkProbability("outcomes.main_frame_probability", c.Outcomes.MainFrameProbability)
	if c.Outcomes.DropProbability+c.Outcomes.SupersedeProbability > 1 {
		addf("outcomes.drop_probability + outcomes.supersede_probability must be <= 1, got %v",
			c.Outcomes.DropProbability+c.Outcomes.SupersedeProbability)
	}

	checkProbability("input.event_probability", c.Input.EventProbability)
	checkProbability("input.main_thread_probability", c.Input.MainThreadProbability)
	if c.Input.MaxEventsPerFrame < 0 {
		addf("input.max_events_per_frame must be >= 0, got %d", c.Input.MaxEventsPerFrame)
	}
	if c.Input.EventProbability > 0 && c.Input.MaxEventsPerFrame == 0 {
		addf("input.max_events_per_frame must be > 0 when input.event_probability is set")
	}
	if len(c.Input.Dispatch) != frame.NumDispatchPhases {
		addf("input.dispatch must have %d entries, got %d", frame.NumDispatchPhases, len(c.Input.Dispatch))
	}
	for i, d := range c.Input.Dispatch {
		checkDuration(fmt.Sprintf("input.dispatch[%d]", i), d)
	}

	checkProbability("partial_update.probability", c.PartialUpdate.Probability)
	checkProbability("partial_update.adopt_probability", c.PartialUpdate.AdoptProbability)

	checkProbability("breakdown.sub_phase_probability", c.Breakdown.SubPhaseProbability)
	checkProbability("breakdown.main_thread_probability", c.Breakdown.MainThreadProbability)
	checkDuration("breakdown.presentation_delay", c.Breakdown.PresentationDelayUs)

	if n := len(c.Predictors.Stage); n != 0 && n != frame.NumStages+1 {
		addf("predictors.stage must have %d entries, got %d", frame.NumStages+1, n)
	}
	if n := len(c.Predictors.Dispatch); n != 0 && n != frame.NumDispatchPhases+1 {
		addf("predictors.dispatch must have %d entries, got %d", frame.NumDispatchPhases+1, n)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid pipeline config: %s", strings.Join(problems, "; "))
	}
	return nil
}
