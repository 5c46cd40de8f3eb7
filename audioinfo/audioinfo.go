// Package audioinfo reads format details and tags from audio files for
// diagnostics. Only WAV and MP3 headers are understood; anything else is
// reported as ErrUnsupported.
package audioinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"
)

var ErrUnsupported = errors.New("unsupported audio format")

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// Info describes the stream of an audio file.
type Info struct {
	Format     string
	SampleRate int
	Channels   int
	BitDepth   int
	Float      bool
	Duration   time.Duration
}

func (i *Info) String() string {
	kind := "int"
	if i.Float {
		kind = "float"
	}
	return fmt.Sprintf("%s, %d Hz, %d ch, %d-bit %s, %s",
		i.Format, i.SampleRate, i.Channels, i.BitDepth, kind, i.Duration.Round(time.Millisecond))
}

// Probe reads the header of the file at path.
func Probe(path string) (*Info, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return probeWAV(path)
	case ".mp3":
		return probeMP3(path)
	default:
		return nil, errors.Wrap(ErrUnsupported, path)
	}
}

func probeWAV(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	// IsValidFile rewinds the reader, so the header is checked by hand
	d.ReadInfo()
	if err := d.Err(); err != nil || d.NumChans < 1 || d.BitDepth < 8 {
		return nil, errors.Errorf("%s is not a valid WAV file", path)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	frameSize := int(d.NumChans) * int(d.BitDepth) / 8
	if d.SampleRate == 0 || frameSize == 0 {
		return nil, errors.Errorf("%s is not a valid WAV file", path)
	}
	seconds := float64(d.PCMSize) / float64(frameSize) / float64(d.SampleRate)
	duration := time.Duration(seconds * float64(time.Second))
	return &Info{
		Format:     "wav",
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Float:      d.WavAudioFormat == wavFormatFloat,
		Duration:   duration,
	}, nil
}

func probeMP3(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	// go-mp3 always decodes to 16-bit stereo, 4 bytes per frame
	seconds := float64(decoder.Length()) / (4 * float64(decoder.SampleRate()))
	return &Info{
		Format:     "mp3",
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
		Duration:   time.Duration(seconds * float64(time.Second)),
	}, nil
}

// Tags are the descriptive tags of a file.
type Tags struct {
	Title  string
	Artist string
	Album  string
}

func (t Tags) String() string {
	switch {
	case t.Title != "" && t.Artist != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	default:
		return t.Artist
	}
}

// ReadTags reads ID3, MP4, FLAC or OGG tags. A file without tags yields empty Tags.
func ReadTags(path string) (Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tags{}, errors.WithStack(err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Tags{}, nil
		}
		return Tags{}, errors.Wrapf(err, "reading tags of %s", path)
	}
	return Tags{Title: m.Title(), Artist: m.Artist(), Album: m.Album()}, nil
}
