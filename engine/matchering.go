package engine

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

//go:embed bridge.py
var bridgeScript string

// DefaultPython is the interpreter used when none is configured.
var DefaultPython = []string{"python3"}

// Matchering drives the matchering python library through a small bridge
// script. The library's log callbacks come back as JSON lines on stdout.
type Matchering struct {
	// Python is the interpreter command, e.g. ["python3"] or ["uv", "run", "python"].
	Python []string
	// Env is appended to the inherited environment.
	Env []string
}

func (m *Matchering) Name() string {
	return "matchering"
}

type bridgeResult struct {
	Path       string `json:"path"`
	Subtype    string `json:"subtype"`
	UseLimiter bool   `json:"use_limiter"`
	Normalize  bool   `json:"normalize"`
}

type bridgeJob struct {
	Target    string         `json:"target"`
	Reference string         `json:"reference"`
	Results   []bridgeResult `json:"results"`
}

type bridgeEvent struct {
	Event   string   `json:"event"`
	Level   string   `json:"level"`
	Msg     string   `json:"msg"`
	Title   string   `json:"title"`
	Version string   `json:"version"`
	Author  string   `json:"author"`
	Email   string   `json:"email"`
	Credits []string `json:"credits"`
}

func (m *Matchering) Process(ctx context.Context, job Job, sink Sink) error {
	if err := validate(job); err != nil {
		return errors.WithStack(err)
	}

	payload := bridgeJob{Target: job.Target, Reference: job.Reference}
	for _, r := range job.Results {
		payload.Results = append(payload.Results, bridgeResult{
			Path:       r.Path,
			Subtype:    string(r.Subtype),
			UseLimiter: r.UseLimiter,
			Normalize:  r.Normalize,
		})
	}
	stdin, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding bridge job")
	}

	python := m.Python
	if len(python) == 0 {
		python = DefaultPython
	}
	args := append(append([]string{}, python[1:]...), "-c", bridgeScript)
	cmd := execCommand(ctx, python[0], args...)
	cmd.Env = append(cmd.Environ(), m.Env...)
	cmd.Stdin = bytes.NewReader(stdin)
	stderr := &tailBuffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.WithStack(err)
	}

	if err := cmd.Start(); err != nil {
		return errors.WithStack(&Error{Engine: m.Name(), Err: err})
	}
	scanErr := scanLines(stdout, func(line string) {
		dispatch(line, sink)
	})
	if scanErr != nil {
		_, _ = io.Copy(io.Discard, stdout)
	}
	if err := cmd.Wait(); err != nil {
		return errors.WithStack(&Error{Engine: m.Name(), Err: err, Output: stderr.String()})
	}
	if scanErr != nil {
		return errors.Wrap(scanErr, "reading bridge output")
	}
	return nil
}

func dispatch(line string, sink Sink) {
	var ev bridgeEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil || ev.Event == "" {
		if line != "" {
			sink.Debug(line)
		}
		return
	}
	switch ev.Event {
	case "meta":
		Meta{
			Title:   ev.Title,
			Version: ev.Version,
			Author:  ev.Author,
			Email:   ev.Email,
			Credits: ev.Credits,
		}.Log(sink)
	case "log":
		switch ev.Level {
		case "warning":
			sink.Warning(ev.Msg)
		case "info":
			sink.Info(ev.Msg)
		default:
			sink.Debug(ev.Msg)
		}
	default:
		sink.Debug(line)
	}
}
