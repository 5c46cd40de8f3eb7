// Package preset discovers named reference tracks stored as one subdirectory
// per preset under a references folder, and resolves the reference argument
// of the master command to an audio file.
package preset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agext/levenshtein"
	"github.com/pkg/errors"
	"golang.org/x/text/cases"
)

// Extensions are the accepted reference audio file suffixes, matched case-insensitively.
var Extensions = []string{".mp3", ".wav", ".aac", ".flac", ".m4a"}

// maxSuggestionDistance bounds how far a typo may be from a preset name to be suggested.
const maxSuggestionDistance = 3

type Preset struct {
	// Name is the subdirectory name as found on disk.
	Name string
	Path string
}

// Catalog is the set of presets found under one references folder.
type Catalog struct {
	Root    string
	Presets []Preset
	// Skipped holds subdirectories that could not be read, with the reason.
	Skipped []error
	index   map[string]int
}

// readDir is replaced in tests; permission bits do not stop root.
var readDir = os.ReadDir

// fold maps a preset name to its lookup key. Casers are stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Scan builds a catalog from the immediate subdirectories of root. Each
// subdirectory holding at least one accepted audio file becomes a preset
// pointing at the lexicographically first such file. A missing root yields an
// empty catalog; unreadable subdirectories are recorded in Skipped.
func Scan(root string) (*Catalog, error) {
	c := &Catalog{Root: root, index: map[string]int{}}
	entries, err := readDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, errors.Wrapf(err, "reading references directory %s", root)
	}
	// os.ReadDir returns entries sorted by file name
	for _, entry := range entries {
		if !isDir(root, entry) {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		file, err := firstAudioFile(dir)
		if err != nil {
			c.Skipped = append(c.Skipped, err)
			continue
		}
		if file == "" {
			continue
		}
		c.add(Preset{Name: entry.Name(), Path: file})
	}
	return c, nil
}

func (c *Catalog) add(p Preset) {
	key := fold(p.Name)
	if _, dup := c.index[key]; dup {
		// "Pop" and "pop" on a case-sensitive filesystem: the first in name order wins
		return
	}
	c.index[key] = len(c.Presets)
	c.Presets = append(c.Presets, p)
}

func isDir(root string, entry fs.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(root, entry.Name()))
	return err == nil && info.IsDir()
}

func firstAudioFile(dir string) (string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "reading preset directory %s", dir)
	}
	var files []string
	for _, entry := range entries {
		if !IsAudioFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return "", nil
	}
	sort.Strings(files)
	return files[0], nil
}

// IsAudioFile reports whether name carries one of the accepted extensions.
func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Lookup finds a preset by name, ignoring case.
func (c *Catalog) Lookup(name string) (Preset, bool) {
	i, ok := c.index[fold(name)]
	if !ok {
		return Preset{}, false
	}
	return c.Presets[i], true
}

// Names returns the preset names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Presets))
	for _, p := range c.Presets {
		names = append(names, p.Name)
	}
	return names
}

// Len is the number of presets.
func (c *Catalog) Len() int {
	return len(c.Presets)
}

// Resolve turns the reference argument into an audio file path. An existing
// regular file is returned unchanged, even if a preset shares its name;
// otherwise the input is looked up as a preset name.
func (c *Catalog) Resolve(input string) (string, error) {
	if info, err := os.Stat(input); err == nil && info.Mode().IsRegular() {
		return input, nil
	}
	if p, ok := c.Lookup(input); ok {
		return p.Path, nil
	}
	return "", &ResolutionError{
		Input:      input,
		Suggestion: c.suggest(input),
		Available:  c.Names(),
	}
}

func (c *Catalog) suggest(input string) string {
	best, bestDistance := "", maxSuggestionDistance+1
	needle := fold(input)
	for _, p := range c.Presets {
		d := levenshtein.Distance(needle, fold(p.Name), nil)
		if d < bestDistance {
			best, bestDistance = p.Name, d
		}
	}
	return best
}

// ResolutionError is returned when the reference argument is neither an
// existing file nor a known preset.
type ResolutionError struct {
	Input      string
	Suggestion string
	Available  []string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%q is not an existing file or a known preset", e.Input)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Loader scans a references directory at most once.
type Loader struct {
	Root string

	once    sync.Once
	catalog *Catalog
	err     error
}

func NewLoader(root string) *Loader {
	return &Loader{Root: root}
}

// Catalog returns the cached catalog, scanning on first use.
func (l *Loader) Catalog() (*Catalog, error) {
	l.once.Do(func() {
		l.catalog, l.err = Scan(l.Root)
	})
	return l.catalog, l.err
}

// Resolve resolves input against the cached catalog. A literal file path
// never triggers a scan.
func (l *Loader) Resolve(input string) (string, error) {
	if info, err := os.Stat(input); err == nil && info.Mode().IsRegular() {
		return input, nil
	}
	c, err := l.Catalog()
	if err != nil {
		return "", err
	}
	return c.Resolve(input)
}
