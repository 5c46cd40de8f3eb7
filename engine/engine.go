// Package engine runs the external mastering step: a target is matched to a
// reference and written to one or more results.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkarlovi/mgcli/result"
)

// Sink receives the leveled log messages an engine emits while it works.
type Sink interface {
	Warning(msg string)
	Info(msg string)
	Debug(msg string)
}

// Job is one mastering run.
type Job struct {
	Target    string
	Reference string
	Results   []result.Spec
}

// Engine performs the mastering itself.
type Engine interface {
	Name() string
	Process(ctx context.Context, job Job, sink Sink) error
}

// Meta identifies the library doing the work.
type Meta struct {
	Title   string
	Version string
	Author  string
	Email   string
	Credits []string
}

// Log writes the identifying lines at debug level.
func (m Meta) Log(sink Sink) {
	sink.Debug(strings.TrimSpace(m.Title + " " + m.Version))
	if m.Author != "" {
		sink.Debug(fmt.Sprintf("Maintained by %s: %s", m.Author, m.Email))
	}
	if len(m.Credits) > 0 {
		sink.Debug("Contributors: " + strings.Join(m.Credits, ", "))
	}
}

// Error is a failed engine run.
type Error struct {
	Engine string
	Err    error
	// Output holds the tail of what the engine wrote to stderr.
	Output string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s engine failed: %v", e.Engine, e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configure the engines built by New.
type Options struct {
	Python    []string
	PythonEnv []string
	FFmpeg    string
	// Ceiling is the peak ceiling in dBTP of the ffmpeg engine.
	Ceiling float64
}

// New returns the engine registered under name.
func New(name string, opts Options) (Engine, error) {
	switch strings.ToLower(name) {
	case "", "matchering":
		return &Matchering{Python: opts.Python, Env: opts.PythonEnv}, nil
	case "ffmpeg":
		return &FFmpeg{Bin: opts.FFmpeg, Ceiling: opts.Ceiling}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (choose from matchering, ffmpeg)", name)
	}
}

func validate(job Job) error {
	if job.Target == "" || job.Reference == "" {
		return fmt.Errorf("target and reference are required")
	}
	if len(job.Results) == 0 {
		return fmt.Errorf("at least one result is required")
	}
	return nil
}
