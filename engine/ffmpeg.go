package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dkarlovi/mgcli/result"
)

// DefaultCeiling is the peak ceiling in dBTP used by the limiter and by normalization.
const DefaultCeiling = -1.0

// FFmpeg matches the integrated loudness of the target to the reference with
// the ffmpeg command line tool. It needs no python, but it only matches
// loudness, not the spectrum.
type FFmpeg struct {
	Bin string
	// Ceiling in dBTP; zero means DefaultCeiling.
	Ceiling float64
}

func (f *FFmpeg) Name() string {
	return "ffmpeg"
}

func (f *FFmpeg) bin() string {
	if f.Bin == "" {
		return "ffmpeg"
	}
	return f.Bin
}

func (f *FFmpeg) ceiling() float64 {
	if f.Ceiling == 0 {
		return DefaultCeiling
	}
	return f.Ceiling
}

// Loudness is one loudnorm measurement pass.
type Loudness struct {
	Integrated float64 // LUFS
	TruePeak   float64 // dBTP
	Range      float64 // LU
}

type loudnormStats struct {
	InputI   string `json:"input_i"`
	InputTP  string `json:"input_tp"`
	InputLRA string `json:"input_lra"`
}

func (f *FFmpeg) Process(ctx context.Context, job Job, sink Sink) error {
	if err := validate(job); err != nil {
		return errors.WithStack(err)
	}
	f.meta(ctx).Log(sink)

	ref, err := f.measure(ctx, job.Reference)
	if err != nil {
		return errors.Wrap(err, "measuring reference")
	}
	sink.Info(fmt.Sprintf("Reference: %.1f LUFS, %.1f dBTP", ref.Integrated, ref.TruePeak))
	target, err := f.measure(ctx, job.Target)
	if err != nil {
		return errors.Wrap(err, "measuring target")
	}
	sink.Info(fmt.Sprintf("Target: %.1f LUFS, %.1f dBTP", target.Integrated, target.TruePeak))

	for _, r := range job.Results {
		codec, err := codecArgs(r)
		if err != nil {
			return errors.WithStack(err)
		}
		gain, filters := Plan(r, ref, target, f.ceiling())
		sink.Debug(fmt.Sprintf("Gain %+.2f dB, filters %s", gain, filters))
		if r.Clipping() && target.TruePeak+gain > 0 {
			sink.Warning(fmt.Sprintf("%s will clip by %.1f dB", r.Path, target.TruePeak+gain))
		}

		args := []string{"-hide_banner", "-nostats", "-loglevel", "error", "-y", "-i", job.Target, "-vn", "-af", filters}
		args = append(args, codec...)
		args = append(args, r.Path)
		sink.Info("Rendering " + r.Path)
		if _, err := f.run(ctx, args...); err != nil {
			return err
		}
		sink.Info("Saved " + r.Path)
	}
	return nil
}

// Plan computes the gain that moves target to the reference loudness and the
// filter chain that applies it for spec.
func Plan(spec result.Spec, ref, target Loudness, ceiling float64) (float64, string) {
	gain := ref.Integrated - target.Integrated
	filters := []string{fmt.Sprintf("volume=%.2fdB", gain)}
	switch {
	case spec.UseLimiter:
		limit := math.Pow(10, ceiling/20)
		filters = append(filters, fmt.Sprintf("alimiter=limit=%.4f:level=0", limit))
	case spec.Normalize:
		if peak := target.TruePeak + gain; peak > ceiling {
			gain = ceiling - target.TruePeak
			filters[0] = fmt.Sprintf("volume=%.2fdB", gain)
		}
	}
	return gain, strings.Join(filters, ",")
}

func codecArgs(r result.Spec) ([]string, error) {
	if strings.EqualFold(filepath.Ext(r.Path), ".flac") {
		switch r.Subtype {
		case result.PCM16:
			return []string{"-c:a", "flac", "-sample_fmt", "s16"}, nil
		case result.PCM24:
			return []string{"-c:a", "flac", "-sample_fmt", "s32", "-bits_per_raw_sample", "24"}, nil
		default:
			return nil, fmt.Errorf("flac cannot store %s samples", r.Subtype)
		}
	}
	switch r.Subtype {
	case result.PCM16:
		return []string{"-c:a", "pcm_s16le"}, nil
	case result.PCM24:
		return []string{"-c:a", "pcm_s24le"}, nil
	case result.Float:
		return []string{"-c:a", "pcm_f32le"}, nil
	default:
		return nil, fmt.Errorf("unknown subtype %q", r.Subtype)
	}
}

func (f *FFmpeg) measure(ctx context.Context, path string) (Loudness, error) {
	out, err := f.run(ctx, "-hide_banner", "-nostats", "-i", path, "-vn", "-af", "loudnorm=print_format=json", "-f", "null", "-")
	if err != nil {
		return Loudness{}, err
	}
	return ParseLoudnorm(out)
}

// ParseLoudnorm extracts the measurement from loudnorm's print_format=json output.
func ParseLoudnorm(out string) (Loudness, error) {
	start, end := strings.LastIndex(out, "{"), strings.LastIndex(out, "}")
	if start < 0 || end < start {
		return Loudness{}, errors.New("no loudnorm statistics in ffmpeg output")
	}
	var stats loudnormStats
	if err := json.Unmarshal([]byte(out[start:end+1]), &stats); err != nil {
		return Loudness{}, errors.Wrap(err, "parsing loudnorm statistics")
	}

	var l Loudness
	var err error
	if l.Integrated, err = parseStat("input_i", stats.InputI); err != nil {
		return Loudness{}, err
	}
	if l.TruePeak, err = parseStat("input_tp", stats.InputTP); err != nil {
		return Loudness{}, err
	}
	// LRA is informational, a silent file reports 0
	l.Range, _ = strconv.ParseFloat(strings.TrimSpace(stats.InputLRA), 64)
	return l, nil
}

func parseStat(name, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "loudnorm %s", name)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.Errorf("loudnorm %s is %s, is the file silent?", name, value)
	}
	return v, nil
}

func (f *FFmpeg) meta(ctx context.Context) Meta {
	m := Meta{Title: "ffmpeg"}
	cmd := execCommand(ctx, f.bin(), "-version")
	out, err := cmd.Output()
	if err != nil {
		return m
	}
	// "ffmpeg version 7.0.1 Copyright (c) 2000-2024 the FFmpeg developers"
	first, _, _ := strings.Cut(string(out), "\n")
	if fields := strings.Fields(first); len(fields) >= 3 && fields[1] == "version" {
		m.Version = fields[2]
	}
	return m
}

// run executes ffmpeg and returns its stderr, where ffmpeg writes its reports.
func (f *FFmpeg) run(ctx context.Context, args ...string) (string, error) {
	cmd := execCommand(ctx, f.bin(), args...)
	var stderr bytes.Buffer
	tail := &tailBuffer{}
	cmd.Stderr = io.MultiWriter(&stderr, tail)
	if err := cmd.Run(); err != nil {
		return "", errors.WithStack(&Error{Engine: f.Name(), Err: err, Output: tail.String()})
	}
	return stderr.String(), nil
}
