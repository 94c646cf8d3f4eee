// Command pipeline runs the Yelp batch pipeline: sample the business and
// review NDJSON datasets to CSV, hash-join them, load the merged rows into a
// database, report the ranked city averages with a bar chart, and clear the
// scratch directory.
//
// Each stage is addressable as its own -task so an external orchestrator can
// drive the graph one stage per invocation; -task=all runs the whole graph
// in-process with the samplers in parallel.
//
// Usage:
//
//	pipeline -config configs/pipelines/yelp.json -task all
//	pipeline -config configs/pipelines/yelp.json -task merge
//	pipeline -config configs/pipelines/yelp.json -validate
//
// Metrics are optional. Select a backend with -metrics-backend (or
// METRICS_BACKEND): "pushgateway" needs -pushgateway-url, "datadog" needs
// -dogstatsd-addr, "none" (default) records nothing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"yelpetl/internal/config"
	"yelpetl/internal/metrics"
	"yelpetl/internal/metrics/datadog"
	"yelpetl/internal/metrics/prompush"

	// Register storage backends.
	_ "yelpetl/internal/storage/all"
)

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		configPath = flag.String("config", envOrDefault("PIPELINE_CONFIG", "configs/pipelines/yelp.json"),
			"Path to the pipeline JSON config.")
		task = flag.String("task", envOrDefault("PIPELINE_TASK", "all"),
			fmt.Sprintf("Task to run: %v.", taskNames))
		validateOnly = flag.Bool("validate", false,
			"Validate the config and exit without running any task.")
		metricsBackend = flag.String("metrics-backend", envOrDefault("METRICS_BACKEND", "none"),
			"Metrics backend: pushgateway, datadog, or none.")
		pushgatewayURL = flag.String("pushgateway-url", os.Getenv("PUSHGATEWAY_URL"),
			"Prometheus Pushgateway base URL (pushgateway backend).")
		dogstatsdAddr = flag.String("dogstatsd-addr", envOrDefault("DOGSTATSD_ADDR", "127.0.0.1:8125"),
			"DogStatsD address (datadog backend).")
		verbose = flag.Bool("v", false,
			"Verbose logging. Off, stage logs are suppressed and only errors reach stderr.")
	)
	flag.Parse()

	if !*verbose {
		log.SetOutput(io.Discard)
	}

	p, err := loadPipeline(*configPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(*p)
	hasError := false
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s\n", issue.Severity, issue.Error())
		if issue.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("config %s has errors; refusing to run", *configPath)
	}
	if *validateOnly {
		fmt.Printf("config %s: ok (%d warnings)\n", *configPath, len(issues))
		return
	}

	if err := setupMetrics(*metricsBackend, p.Job, *pushgatewayURL, *dogstatsdAddr); err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := runTask(ctx, *task, p)

	if err := metrics.Flush(); err != nil {
		log.Printf("metrics flush failed: %v", err)
	}
	if runErr != nil {
		fatalf("%v", runErr)
	}
	fmt.Printf("task %s completed\n", *task)
}

// loadPipeline reads, decodes, and normalizes one pipeline config file.
func loadPipeline(path string) (*config.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	var p config.Pipeline
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	config.Normalize(&p)
	return &p, nil
}

// setupMetrics installs the selected metrics backend, if any.
func setupMetrics(kind, job, pushURL, statsdAddr string) error {
	switch kind {
	case "", "none":
		return nil
	case "pushgateway":
		b, err := prompush.NewBackend(job, pushURL)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
		return nil
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:      statsdAddr,
			Namespace: "pipeline.",
			GlobalTags: []string{
				"job:" + job,
			},
		})
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
		return nil
	default:
		return fmt.Errorf("unknown metrics backend %q (valid: pushgateway, datadog, none)", kind)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "pipeline: "+format+"\n", args...)
	os.Exit(1)
}
