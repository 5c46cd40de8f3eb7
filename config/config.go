package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when present; a missing default file is not an error.
const DefaultFile = "mgcli.yaml"

type Config struct {
	ReferencesDir string   `yaml:"references_dir"`
	Engine        string   `yaml:"engine"`
	Python        []string `yaml:"python"`
	PythonEnv     []string `yaml:"python_env"` // KEY=VALUE pairs
	FFmpeg        string   `yaml:"ffmpeg"`
	// Ceiling is the true-peak ceiling of the ffmpeg engine in dBTP.
	Ceiling    float64 `yaml:"ceiling"`
	M4ABitrate string  `yaml:"m4a_bitrate"`
	Log        string  `yaml:"log"` // optional
}

// Default returns the configuration used when no file is given. Presets are
// looked up in the references folder next to the executable.
func Default() *Config {
	return &Config{
		ReferencesDir: filepath.Join(appDir(), "references"),
		Engine:        "matchering",
		Python:        []string{"python3"},
		FFmpeg:        "ffmpeg",
		Ceiling:       -1.0,
		M4ABitrate:    "256k",
	}
}

func appDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// Load reads filename over the defaults, then applies environment overrides.
func Load(filename string) (*Config, error) {
	config := Default()
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := config.decode(filename, data); err != nil {
			return nil, err
		}
	case os.IsNotExist(err) && filename == DefaultFile:
	default:
		return nil, errors.WithStack(err)
	}

	config.ApplyEnv(os.LookupEnv)
	if err := config.expand(); err != nil {
		return nil, err
	}
	return config, config.Validate()
}

func (c *Config) decode(filename string, data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		var typeError *yaml.TypeError
		if errors.As(err, &typeError) {
			msg := ""
			for _, field := range typeError.Errors {
				msg += fmt.Sprintf("  - <fg=red>%s</>\n", field)
			}
			return fmt.Errorf("error parsing config file <info>%s</>:\n%s", filename, msg)
		}
		if errors.Is(err, io.EOF) {
			// empty file
			return nil
		}
		return errors.Wrapf(err, "parsing config file %s", filename)
	}
	return nil
}

// ApplyEnv overrides settings from MGCLI_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("MGCLI_REFERENCES_DIR"); ok && v != "" {
		c.ReferencesDir = v
	}
	if v, ok := lookup("MGCLI_ENGINE"); ok && v != "" {
		c.Engine = v
	}
	if v, ok := lookup("MGCLI_PYTHON"); ok && v != "" {
		c.Python = strings.Fields(v)
	}
	if v, ok := lookup("MGCLI_FFMPEG"); ok && v != "" {
		c.FFmpeg = v
	}
}

func (c *Config) expand() error {
	paths := []*string{&c.ReferencesDir, &c.Log, &c.FFmpeg}
	if len(c.Python) > 0 {
		paths = append(paths, &c.Python[0])
	}
	for _, p := range paths {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return errors.Wrapf(err, "expanding %s", *p)
		}
		*p = expanded
	}
	return nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Engine) {
	case "matchering", "ffmpeg":
	default:
		return fmt.Errorf("unknown engine %q (choose from matchering, ffmpeg)", c.Engine)
	}
	if len(c.Python) == 0 {
		return errors.New("python command must not be empty")
	}
	if c.FFmpeg == "" {
		return errors.New("ffmpeg path must not be empty")
	}
	if c.Ceiling >= 0 || c.Ceiling < -9 {
		return fmt.Errorf("ceiling must be between -9 and 0 dBTP (exclusive), got %v", c.Ceiling)
	}
	for _, kv := range c.PythonEnv {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("python_env entry %q is not KEY=VALUE", kv)
		}
	}
	return nil
}
