// Package postprocess holds the optional steps run after a successful
// mastering: transcoding the result and removing the target.
package postprocess

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/dkarlovi/mgcli/result"
)

// execCommand is swapped in tests.
var execCommand = exec.CommandContext

// DefaultBitrate is the AAC bitrate used for m4a output.
const DefaultBitrate = "256k"

// Converter transcodes results with ffmpeg.
type Converter struct {
	FFmpeg  string
	Bitrate string
}

func (c Converter) bin() string {
	if c.FFmpeg == "" {
		return "ffmpeg"
	}
	return c.FFmpeg
}

func (c Converter) bitrate() string {
	if c.Bitrate == "" {
		return DefaultBitrate
	}
	return c.Bitrate
}

// codecArgs picks the audio codec from the output extension.
func (c Converter) codecArgs(out string) []string {
	switch strings.ToLower(filepath.Ext(out)) {
	case ".mp3":
		return []string{"-c:a", "libmp3lame", "-b:a", c.bitrate()}
	case ".m4a", ".aac":
		return []string{"-c:a", "aac", "-b:a", c.bitrate()}
	case ".flac":
		return []string{"-c:a", "flac"}
	default:
		return []string{"-c:a", "pcm_s16le"}
	}
}

// Transcode writes in to out, choosing the codec from out's extension.
func (c Converter) Transcode(ctx context.Context, in, out string) error {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "error", "-y", "-i", in, "-vn"}
	args = append(args, c.codecArgs(out)...)
	args = append(args, out)

	cmd := execCommand(ctx, c.bin(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "ffmpeg %s -> %s: %s", in, out, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ToM4A transcodes path to an m4a file next to it and removes path. It
// returns the new file name.
func (c Converter) ToM4A(ctx context.Context, path string) (string, error) {
	out := result.SwapExtension(path, ".m4a")
	if out == path {
		return "", errors.Errorf("%s is already an m4a file", path)
	}
	if err := c.Transcode(ctx, path, out); err != nil {
		return "", err
	}
	if _, err := os.Stat(out); err != nil {
		return "", errors.Wrapf(err, "ffmpeg did not write %s", out)
	}
	if err := os.Remove(path); err != nil {
		return out, errors.Wrapf(err, "removing intermediate %s", path)
	}
	return out, nil
}

// DeleteTarget removes the mastered target file.
func DeleteTarget(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if !info.Mode().IsRegular() {
		return errors.Errorf("refusing to delete %s: not a regular file", path)
	}
	return errors.WithStack(os.Remove(path))
}
