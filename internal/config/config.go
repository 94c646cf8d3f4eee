// Package config defines the canonical, JSON-serializable configuration model
// for the Yelp batch pipeline. It is intentionally small, explicit, and
// dependency-free so that pipelines can be loaded from disk (or other sources)
// and passed through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in pipeline
//     files under configs/pipelines/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by the
//     standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "job": "yelp_pipeline",
//	  "datasets": {
//	    "business": { "input": "data/raw/business.json", "output": "data/intermediate/business_sample.csv" },
//	    "review":   { "input": "data/raw/review.json",   "output": "data/intermediate/review_sample.csv" }
//	  },
//	  "sample_size": 5000,
//	  "merge":   { "output": "data/intermediate/merged_yelp.csv", "max_rows": 5000 },
//	  "storage": { "kind": "postgres", "db": { "dsn": "...", "schema": "week10_assignment", "table": "yelp_merged" } },
//	  "report":  { "limit": 10, "chart": "data/outputs/avg_stars_by_city.png" }
//	}
package config

import "encoding/json"

// Defaults applied by Normalize when the corresponding field is zero.
const (
	DefaultSampleSize    = 5000
	DefaultMergeMaxRows  = 5000
	DefaultTextLimit     = 100
	DefaultReportLimit   = 10
	DefaultRetries       = 1
	DefaultRetryDelayMS  = 2000
	DefaultSchemaName    = "week10_assignment"
	DefaultTableName     = "yelp_merged"
	DefaultStorageKind   = "postgres"
	DefaultJobName       = "yelp_pipeline"
	DefaultGroupColumn   = "city"
	DefaultAverageColumn = "review_stars"
)

// Pipeline describes the full batch pipeline in JSON. It is the top-level
// object decoded from a pipeline file (e.g., configs/pipelines/*.json).
type Pipeline struct {
	// Job identifies the run for metrics labeling and logs.
	Job string `json:"job"`

	// Datasets holds the two independent NDJSON inputs sampled in parallel.
	Datasets Datasets `json:"datasets"`

	// SampleSize is the nominal per-dataset sample cutoff. The sampler writes
	// SampleSize+1 rows; see sampler.Run for the documented off-by-one.
	SampleSize int `json:"sample_size"`

	// Merge configures the business×review join stage.
	Merge Merge `json:"merge"`

	// Storage describes where merged rows are written (e.g., Postgres).
	Storage Storage `json:"storage"`

	// Report configures the aggregate summary and chart output.
	Report Report `json:"report"`

	// IntermediateDir is the scratch directory cleared by the cleanup stage.
	// Every intermediate artifact (samples, merged CSV) must live under it.
	IntermediateDir string `json:"intermediate_dir"`

	Runtime Runtime `json:"runtime"`
}

// Datasets names the two sampled sources. They have no shared state and are
// eligible to run concurrently.
type Datasets struct {
	Business Dataset `json:"business"`
	Review   Dataset `json:"review"`
}

// Dataset binds one NDJSON input to its sampled CSV output.
type Dataset struct {
	// Input is the newline-delimited JSON source path (one object per line).
	Input string `json:"input"`

	// Output is the sampled CSV destination path.
	Output string `json:"output"`
}

// Merge configures the join stage.
type Merge struct {
	// Output is the merged CSV destination path.
	Output string `json:"output"`

	// MaxRows caps the number of merged rows emitted. Remaining review rows
	// are left unread once the cap is reached (partial processing, not an
	// error).
	MaxRows int `json:"max_rows"`

	// TextLimit is the maximum review_text length, in characters.
	TextLimit int `json:"text_limit"`
}

// Storage selects the sink used to persist merged rows.
type Storage struct {
	// Kind selects the storage implementation ("postgres", "sqlite").
	Kind string `json:"kind"`

	// DB configures the selected database sink.
	DB DBConfig `json:"db"`
}

// DBConfig configures the DB sink.
type DBConfig struct {
	// DSN is the connection string for the backend driver (e.g.,
	// postgresql://... for pgx/pgxpool, a file path for sqlite).
	DSN string `json:"dsn"`

	// Schema is the target schema name. Backends without schemas flatten it
	// into the table name.
	Schema string `json:"schema"`

	// Table is the target table name. Columns are inferred from the merged
	// CSV header at load time; every column is TEXT.
	Table string `json:"table"`

	// Append controls load semantics: false (default) deletes all prior rows
	// inside the load transaction (truncate-and-reload, idempotent); true
	// appends.
	Append bool `json:"append"`
}

// Report configures the aggregate summary stage.
type Report struct {
	// Limit is the number of ranked groups to report (top N).
	Limit int `json:"limit"`

	// Chart is the output path for the rendered bar chart PNG.
	Chart string `json:"chart"`

	// Options is a free-form bag for chart presentation knobs. Recognized
	// keys: title (string), width (int), height (int).
	Options Options `json:"options"`
}

// Runtime controls per-stage retry behavior when the built-in runner drives
// the full task graph. An external orchestrator supersedes these settings by
// invoking one stage per task.
type Runtime struct {
	// Retries is the number of re-attempts after a stage failure.
	Retries int `json:"retries"`

	// RetryDelayMS is the fixed delay between attempts, in milliseconds.
	RetryDelayMS int `json:"retry_delay_ms"`
}

// Normalize fills zero-valued fields with package defaults. It mutates p in
// place and is safe to call more than once.
func Normalize(p *Pipeline) {
	if p.Job == "" {
		p.Job = DefaultJobName
	}
	if p.SampleSize <= 0 {
		p.SampleSize = DefaultSampleSize
	}
	if p.Merge.MaxRows <= 0 {
		p.Merge.MaxRows = DefaultMergeMaxRows
	}
	if p.Merge.TextLimit <= 0 {
		p.Merge.TextLimit = DefaultTextLimit
	}
	if p.Storage.Kind == "" {
		p.Storage.Kind = DefaultStorageKind
	}
	if p.Storage.DB.Schema == "" {
		p.Storage.DB.Schema = DefaultSchemaName
	}
	if p.Storage.DB.Table == "" {
		p.Storage.DB.Table = DefaultTableName
	}
	if p.Report.Limit <= 0 {
		p.Report.Limit = DefaultReportLimit
	}
	if p.Runtime.Retries < 0 {
		p.Runtime.Retries = DefaultRetries
	}
	if p.Runtime.RetryDelayMS <= 0 {
		p.Runtime.RetryDelayMS = DefaultRetryDelayMS
	}
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object in JSON decodes to a non-nil, empty Options map. This
// simplifies call sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
