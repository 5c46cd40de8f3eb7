package audioinfo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

func writeWAV(t *testing.T, path string, sampleRate, bitDepth, channels int, frames int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, frames*channels),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProbeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 44100, 16, 2, 44100)

	info, err := Probe(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Format != "wav" || info.SampleRate != 44100 || info.Channels != 2 || info.BitDepth != 16 {
		t.Errorf("Probe = %+v", info)
	}
	if info.Float {
		t.Error("PCM file reported as float")
	}
	if info.Duration.Round(time.Millisecond) != time.Second {
		t.Errorf("Duration = %s", info.Duration)
	}
	if !strings.Contains(info.String(), "44100 Hz, 2 ch, 16-bit int") {
		t.Errorf("String() = %s", info)
	}
}

func TestProbeWAVMono24(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valid.wav")
	writeWAV(t, path, 48000, 24, 1, 24000)

	info, err := Probe(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.SampleRate != 48000 || info.Channels != 1 || info.BitDepth != 24 {
		t.Errorf("Probe = %+v", info)
	}
	if info.Duration.Round(time.Millisecond) != 500*time.Millisecond {
		t.Errorf("Duration = %s", info.Duration)
	}
}

func TestProbeInvalidWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Probe(path); err == nil {
		t.Error("expected an error for a broken WAV file")
	}
}

func TestProbeUnsupported(t *testing.T) {
	_, err := Probe("reference.flac")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestProbeMissingFile(t *testing.T) {
	if _, err := Probe(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestReadTagsWithoutTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.wav")
	writeWAV(t, path, 8000, 16, 1, 800)

	tags, err := ReadTags(path)
	if err != nil {
		t.Fatal(err)
	}
	if tags != (Tags{}) {
		t.Errorf("expected no tags, got %+v", tags)
	}
}

func TestTagsString(t *testing.T) {
	cases := map[Tags]string{
		{Title: "Song", Artist: "Band"}: "Band - Song",
		{Title: "Song"}:                 "Song",
		{Artist: "Band"}:                "Band",
		{}:                              "",
	}
	for tags, want := range cases {
		if got := tags.String(); got != want {
			t.Errorf("%+v.String() = %q, want %q", tags, got, want)
		}
	}
}
