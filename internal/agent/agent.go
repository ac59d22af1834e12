package agent

import (
	"context"
	"encoding/json"
	"maps"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind classifies an agent for validation and construction purposes.
type Kind string

const (
	KindVideo      Kind = "video"
	KindAudio      Kind = "audio"
	KindMetadata   Kind = "metadata"
	KindStoryboard Kind = "storyboard"
)

// Known reports whether k is one of the built-in kinds.
func (k Kind) Known() bool {
	switch k {
	case KindVideo, KindAudio, KindMetadata, KindStoryboard:
		return true
	default:
		return false
	}
}

// Label returns a title-cased display label such as "Storyboard".
func (k Kind) Label() string {
	return cases.Title(language.Und).String(strings.ReplaceAll(string(k), "_", " "))
}

// Config carries the construction parameters shared by every agent.
type Config struct {
	JobID         string
	FileReference string
	// FileKind is populated for metadata agents only.
	FileKind string
}

// Agent is a pluggable processing unit.
type Agent interface {
	Process(ctx context.Context) (Result, error)
}

// Factory constructs an agent for one job.
type Factory func(Config) (Agent, error)

// Func adapts a plain function to the Agent interface.
type Func func(ctx context.Context) (Result, error)

// Process calls f.
func (f Func) Process(ctx context.Context) (Result, error) {
	return f(ctx)
}

// Well-known metric keys consumed by output validation.
const (
	MetricOutputVideo     = "output_video"
	MetricStoryboardImage = "storyboard_image"
)

// Validation flags attached by the orchestrator.
const (
	ValidationVerified = "verified"
	ValidationFailed   = "failed validation"
)

const (
	keyError      = "error"
	keyValidation = "validation"
)

// Result is the outcome of one agent invocation: named metrics on success or
// a human-readable cause on failure. Validation is attached after the fact.
type Result struct {
	Metrics    map[string]any
	Error      string
	Validation string
}

// Success builds a result from metrics. The map is copied.
func Success(metrics map[string]any) Result {
	return Result{Metrics: maps.Clone(metrics)}
}

// Failure builds a result carrying only an error cause.
func Failure(cause string) Result {
	cause = strings.TrimSpace(cause)
	if cause == "" {
		cause = "unknown failure"
	}
	return Result{Error: cause}
}

// Failed reports whether the result carries an error indicator.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Verified reports whether validation marked the result as sound.
func (r Result) Verified() bool {
	return r.Validation == ValidationVerified
}

// WithValidation returns a copy of r with the validation flag set.
func (r Result) WithValidation(ok bool) Result {
	out := r.Clone()
	if ok {
		out.Validation = ValidationVerified
	} else {
		out.Validation = ValidationFailed
	}
	return out
}

// Clone returns a copy that shares no map with r.
func (r Result) Clone() Result {
	out := r
	out.Metrics = maps.Clone(r.Metrics)
	return out
}

// Metric returns the named metric.
func (r Result) Metric(name string) (any, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}

// StringMetric returns the named metric when it is a string.
func (r Result) StringMetric(name string) string {
	if v, ok := r.Metrics[name].(string); ok {
		return v
	}
	return ""
}

// Map returns the flattened record form: the metrics plus "error" and
// "validation" keys when set.
func (r Result) Map() map[string]any {
	out := make(map[string]any, len(r.Metrics)+2)
	maps.Copy(out, r.Metrics)
	if r.Error != "" {
		out[keyError] = r.Error
	}
	if r.Validation != "" {
		out[keyValidation] = r.Validation
	}
	return out
}

// MarshalJSON encodes the flattened record form.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON decodes the flattened record form.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = FromMap(raw)
	return nil
}

// FromMap rebuilds a result from its flattened record form.
func FromMap(raw map[string]any) Result {
	var out Result
	for key, value := range raw {
		switch key {
		case keyError:
			if s, ok := value.(string); ok {
				out.Error = s
				continue
			}
		case keyValidation:
			if s, ok := value.(string); ok {
				out.Validation = s
				continue
			}
		}
		if out.Metrics == nil {
			out.Metrics = make(map[string]any, len(raw))
		}
		out.Metrics[key] = value
	}
	return out
}
