package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/inference-sim/framelat/frame"
	"github.com/inference-sim/framelat/frame/pipeline"
	"github.com/inference-sim/framelat/frame/sink"
)

// Sink kinds accepted by --sink.
const (
	sinkMemory     = "memory"
	sinkPrometheus = "prometheus"
	sinkOTel       = "otel"
	sinkLog        = "log"
)

var validSinks = map[string]bool{sinkMemory: true, sinkPrometheus: true, sinkOTel: true, sinkLog: true}

var (
	configPath string // Pipeline YAML config; empty uses the built-in defaults
	sinkKind   string // Metric sink
	seed       int64  // Overrides the config seed when set
	frames     int    // Overrides the config frame count when set
	traceLevel string // Overrides the config trace level when set
)

// runOptions is the resolved input of one run.
type runOptions struct {
	Config pipeline.Config
	Sink   string
}

// runCmd drives the synthetic pipeline using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the synthetic pipeline and report frame latency",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg := pipeline.DefaultConfig()
		if configPath != "" {
			loaded, err := pipeline.LoadConfig(configPath)
			if err != nil {
				logrus.Fatalf("Failed to load pipeline config: %v", err)
			}
			cfg = *loaded
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = seed
		}
		if cmd.Flags().Changed("frames") {
			cfg.Frames = frames
		}
		if cmd.Flags().Changed("trace") {
			cfg.TraceLevel = traceLevel
		}

		if err := runPipeline(cmd.Context(), cmd.OutOrStdout(), runOptions{Config: cfg, Sink: sinkKind}); err != nil {
			logrus.Fatalf("Pipeline run failed: %v", err)
		}
		logrus.Info("Pipeline run complete.")
	},
}

// runPipeline runs one pipeline with the requested sink and writes the report to w.
func runPipeline(ctx context.Context, w io.Writer, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !validSinks[opts.Sink] {
		return fmt.Errorf("unknown sink %q", opts.Sink)
	}

	mem := sink.NewMemorySink()
	var (
		registry *prometheus.Registry
		reader   *sdkmetric.ManualReader
		provider *sdkmetric.MeterProvider
		out      frame.MetricSink = mem
	)
	switch opts.Sink {
	case sinkPrometheus:
		registry = prometheus.NewRegistry()
		out = sink.Tee(mem, sink.NewPrometheusSink(registry))
	case sinkOTel:
		reader = sdkmetric.NewManualReader()
		provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logrus.Warnf("shutting down meter provider: %v", err)
			}
		}()
		otelSink, err := sink.NewOTelSink(provider.Meter("github.com/inference-sim/framelat"))
		if err != nil {
			return err
		}
		out = sink.Tee(mem, otelSink)
	case sinkLog:
		out = sink.Tee(mem, sink.LogSink{})
	}

	d, err := pipeline.NewDriver(opts.Config, out)
	if err != nil {
		return err
	}
	res, err := d.Run(ctx)
	if err != nil {
		return err
	}

	printResult(w, res, mem)
	switch opts.Sink {
	case sinkPrometheus:
		fmt.Fprintln(w, "=== Prometheus Exposition ===")
		if err := sink.WriteText(w, registry); err != nil {
			return err
		}
	case sinkOTel:
		if err := printOTel(ctx, w, reader); err != nil {
			return err
		}
	}
	return nil
}

// printResult writes the run summary, the predictor snapshots and the aggregate
// latency distributions.
func printResult(w io.Writer, res *pipeline.Result, mem *sink.MemorySink) {
	fmt.Fprintln(w, "=== Frame Latency Summary ===")
	fmt.Fprintf(w, "Frames               : %d\n", res.Frames)
	fmt.Fprintf(w, "Presented            : %d\n", res.Presented)
	fmt.Fprintf(w, "Dropped              : %d\n", res.Dropped)
	fmt.Fprintf(w, "Superseded           : %d\n", res.Superseded)
	fmt.Fprintf(w, "Adopted dependents   : %d\n", res.Adopted)
	fmt.Fprintf(w, "Evicted dependents   : %d\n", res.Evicted)
	fmt.Fprintf(w, "Samples recorded     : %d\n", mem.Total())
	if res.Summary != nil && res.Summary.PresentedLatency.Count > 0 {
		l := res.Summary.PresentedLatency
		fmt.Fprintf(w, "Presented latency    : mean=%.0fus p50=%.0fus p99=%.0fus max=%.0fus\n", l.Mean, l.P50, l.P99, l.Max)
	}

	fmt.Fprintln(w, "=== Stage Predictions (us) ===")
	for _, s := range frame.Stages() {
		fmt.Fprintf(w, "%-52s: %d\n", s, res.Stage[s])
	}
	fmt.Fprintf(w, "%-52s: %d\n", "Total", res.Stage[frame.NumStages])

	fmt.Fprintln(w, "=== Dispatch Predictions (us) ===")
	for i := 0; i < frame.NumDispatchPhases; i++ {
		name := frame.DispatchStage(i).String() + "To" + frame.DispatchStage(i+1).String()
		fmt.Fprintf(w, "%-52s: %d\n", name, res.Dispatch[i])
	}
	fmt.Fprintf(w, "%-52s: %d\n", "Total", res.Dispatch[frame.NumDispatchPhases])

	fmt.Fprintln(w, "=== Aggregate Buckets (us) ===")
	for _, b := range []string{
		frame.TotalLatencyBucket(frame.Presented),
		frame.TotalLatencyBucket(frame.DidNotPresent),
		frame.EventTotalLatencyBucket,
	} {
		d := mem.Summary(b)
		fmt.Fprintf(w, "%-52s: count=%d mean=%.0f p50=%.0f p95=%.0f p99=%.0f\n", b, d.Count, d.Mean, d.P50, d.P95, d.P99)
	}
}

// printOTel collects the OpenTelemetry histogram and writes its per-bucket counts.
func printOTel(ctx context.Context, w io.Writer, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collecting OpenTelemetry metrics: %w", err)
	}
	counts := make(map[string]uint64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			hist, ok := m.Data.(metricdata.Histogram[int64])
			if !ok || m.Name != sink.OTelInstrumentName {
				continue
			}
			for _, dp := range hist.DataPoints {
				if v, ok := dp.Attributes.Value(sink.BucketLabel); ok {
					counts[v.AsString()] += dp.Count
				}
			}
		}
	}
	buckets := make([]string, 0, len(counts))
	for b := range counts {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)

	fmt.Fprintln(w, "=== OpenTelemetry Histogram Counts ===")
	for _, b := range buckets {
		fmt.Fprintf(w, "%s %d\n", b, counts[b])
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a pipeline YAML config (defaults are built in)")
	runCmd.Flags().StringVar(&sinkKind, "sink", sinkMemory, "Metric sink (memory, prometheus, otel, log)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the synthetic pipeline (overrides the config)")
	runCmd.Flags().IntVar(&frames, "frames", 600, "Number of frames to drive (overrides the config)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "frames", "Trace level (none, frames, predictions; overrides the config)")
}
