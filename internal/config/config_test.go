package config

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	t.Parallel()

	var p Pipeline
	Normalize(&p)

	if p.Job != DefaultJobName {
		t.Errorf("Job = %q, want %q", p.Job, DefaultJobName)
	}
	if p.SampleSize != DefaultSampleSize {
		t.Errorf("SampleSize = %d, want %d", p.SampleSize, DefaultSampleSize)
	}
	if p.Merge.MaxRows != DefaultMergeMaxRows {
		t.Errorf("Merge.MaxRows = %d, want %d", p.Merge.MaxRows, DefaultMergeMaxRows)
	}
	if p.Merge.TextLimit != DefaultTextLimit {
		t.Errorf("Merge.TextLimit = %d, want %d", p.Merge.TextLimit, DefaultTextLimit)
	}
	if p.Storage.Kind != DefaultStorageKind {
		t.Errorf("Storage.Kind = %q, want %q", p.Storage.Kind, DefaultStorageKind)
	}
	if p.Storage.DB.Schema != DefaultSchemaName {
		t.Errorf("Storage.DB.Schema = %q, want %q", p.Storage.DB.Schema, DefaultSchemaName)
	}
	if p.Storage.DB.Table != DefaultTableName {
		t.Errorf("Storage.DB.Table = %q, want %q", p.Storage.DB.Table, DefaultTableName)
	}
	if p.Report.Limit != DefaultReportLimit {
		t.Errorf("Report.Limit = %d, want %d", p.Report.Limit, DefaultReportLimit)
	}
	if p.Runtime.RetryDelayMS != DefaultRetryDelayMS {
		t.Errorf("Runtime.RetryDelayMS = %d, want %d", p.Runtime.RetryDelayMS, DefaultRetryDelayMS)
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	p := Pipeline{
		Job:        "custom",
		SampleSize: 7,
		Merge:      Merge{MaxRows: 3, TextLimit: 5},
		Storage: Storage{
			Kind: "sqlite",
			DB:   DBConfig{Schema: "s", Table: "t"},
		},
		Report:  Report{Limit: 2},
		Runtime: Runtime{Retries: 4, RetryDelayMS: 10},
	}
	Normalize(&p)

	if p.Job != "custom" || p.SampleSize != 7 || p.Merge.MaxRows != 3 ||
		p.Storage.Kind != "sqlite" || p.Report.Limit != 2 || p.Runtime.Retries != 4 {
		t.Errorf("Normalize overwrote explicit values: %+v", p)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	var a, b Pipeline
	Normalize(&a)
	b = a
	Normalize(&a)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("second Normalize changed the pipeline:\n first=%+v\nsecond=%+v", b, a)
	}
}

func TestOptionsAccessors(t *testing.T) {
	t.Parallel()

	o := Options{
		"title":  "Chart",
		"width":  float64(800), // JSON numbers decode as float64
		"pretty": true,
		"wrong":  []any{"x"},
	}

	if got := o.String("title", "def"); got != "Chart" {
		t.Errorf("String(title) = %q, want Chart", got)
	}
	if got := o.String("missing", "def"); got != "def" {
		t.Errorf("String(missing) = %q, want def", got)
	}
	if got := o.String("width", "def"); got != "def" {
		t.Errorf("String on non-string = %q, want def", got)
	}
	if got := o.Int("width", 1); got != 800 {
		t.Errorf("Int(width) = %d, want 800", got)
	}
	if got := o.Int("missing", 42); got != 42 {
		t.Errorf("Int(missing) = %d, want 42", got)
	}
	if got := o.Bool("pretty", false); !got {
		t.Errorf("Bool(pretty) = false, want true")
	}
	if got := o.Bool("wrong", true); !got {
		t.Errorf("Bool on non-bool = false, want default true")
	}
}

func TestOptionsUnmarshalNull(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{name: "null options", in: `{"limit": 3, "options": null}`},
		{name: "missing options", in: `{"limit": 3}`},
		{name: "empty options", in: `{"limit": 3, "options": {}}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var r Report
			if err := json.Unmarshal([]byte(tt.in), &r); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			// Missing options keeps the zero value; explicit null and {}
			// both decode to a usable empty map.
			if got := r.Options.String("title", "fallback"); got != "fallback" {
				t.Errorf("String on empty options = %q, want fallback", got)
			}
		})
	}
}

func TestPipelineDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	in := `{
		"job": "yelp_pipeline",
		"datasets": {
			"business": {"input": "b.json", "output": "b.csv"},
			"review":   {"input": "r.json", "output": "r.csv"}
		},
		"sample_size": 100,
		"merge": {"output": "m.csv", "max_rows": 50, "text_limit": 10},
		"storage": {"kind": "sqlite", "db": {"dsn": "x.db", "schema": "s", "table": "t", "append": true}},
		"report": {"limit": 5, "chart": "c.png", "options": {"title": "T"}},
		"intermediate_dir": "tmp",
		"runtime": {"retries": 2, "retry_delay_ms": 1}
	}`

	var p Pipeline
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Datasets.Review.Input != "r.json" {
		t.Errorf("Datasets.Review.Input = %q, want r.json", p.Datasets.Review.Input)
	}
	if !p.Storage.DB.Append {
		t.Error("Storage.DB.Append = false, want true")
	}
	if got := p.Report.Options.String("title", ""); got != "T" {
		t.Errorf("Report.Options title = %q, want T", got)
	}
}
