package result

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Subtype is the sample format tag understood by the mastering engines.
type Subtype string

const (
	PCM16 Subtype = "PCM_16"
	PCM24 Subtype = "PCM_24"
	Float Subtype = "FLOAT"
)

var bitToSubtype = map[int]Subtype{
	16: PCM16,
	24: PCM24,
	32: Float,
}

// SubtypeForBits maps a bit depth to its subtype. 32 means 32-bit float.
func SubtypeForBits(bits int) (Subtype, error) {
	subtype, ok := bitToSubtype[bits]
	if !ok {
		return "", fmt.Errorf("invalid bit depth %d (choose from 16, 24, 32)", bits)
	}
	return subtype, nil
}

// Spec describes one mastered output.
type Spec struct {
	Path       string
	Subtype    Subtype
	UseLimiter bool
	Normalize  bool
}

// NewSpec sanitizes path and resolves the subtype for bits.
func NewSpec(path string, bits int, useLimiter, normalize bool) (Spec, error) {
	subtype, err := SubtypeForBits(bits)
	if err != nil {
		return Spec{}, err
	}
	return Spec{
		Path:       Sanitize(path),
		Subtype:    subtype,
		UseLimiter: useLimiter,
		Normalize:  normalize,
	}, nil
}

// Clipping reports whether s can produce clipped samples: no limiter,
// no normalization and an integer sample format.
func (s Spec) Clipping() bool {
	return !s.UseLimiter && !s.Normalize && s.Subtype != Float
}

// KnownExtensions are the tokens Sanitize strips when they are duplicated in a file name.
var KnownExtensions = []string{".aac", ".m4a", ".mp3", ".flac", ".wav", ".mp4"}

// Sanitize removes known audio extensions trailing the base name of path
// ("song.wav.wav" -> "song.wav") and keeps the final extension as given.
// Tokens inside the name are left alone, so "wavelength.wav" is unchanged.
func Sanitize(path string) string {
	dir, file := filepath.Split(path)
	ext := filepath.Ext(file)
	base := strings.TrimSuffix(file, ext)
	for {
		trimmed := trimKnownExtension(base)
		if trimmed == base || trimmed == "" {
			break
		}
		base = trimmed
	}
	return dir + base + ext
}

func trimKnownExtension(base string) string {
	lower := strings.ToLower(base)
	for _, ext := range KnownExtensions {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// SwapExtension replaces the extension of path with ext (".m4a").
func SwapExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
