package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
references_dir: /srv/references
engine: ffmpeg
python: [uv, run, python]
ffmpeg: /usr/bin/ffmpeg
m4a_bitrate: 320k
log: /tmp/mgcli.log
`)
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.ReferencesDir != "/srv/references" || c.Engine != "ffmpeg" || c.FFmpeg != "/usr/bin/ffmpeg" {
		t.Errorf("Load = %+v", c)
	}
	if strings.Join(c.Python, " ") != "uv run python" {
		t.Errorf("Python = %v", c.Python)
	}
	if c.M4ABitrate != "320k" || c.Log != "/tmp/mgcli.log" {
		t.Errorf("Load = %+v", c)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "engine: matchering\n"))
	if err != nil {
		t.Fatal(err)
	}
	d := Default()
	if c.ReferencesDir != d.ReferencesDir || c.FFmpeg != "ffmpeg" || c.M4ABitrate != "256k" {
		t.Errorf("defaults lost: %+v", c)
	}
	if filepath.Base(c.ReferencesDir) != "references" {
		t.Errorf("ReferencesDir = %s", c.ReferencesDir)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err != nil {
		t.Errorf("empty config should load: %v", err)
	}
}

func TestLoadUnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "references: /srv\n"))
	if err == nil {
		t.Fatal("unknown fields must be rejected")
	}
	if !strings.Contains(err.Error(), "references") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestLoadInvalidEngine(t *testing.T) {
	if _, err := Load(writeConfig(t, "engine: sox\n")); err == nil {
		t.Error("unknown engine must be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(DefaultFile); err != nil {
		t.Errorf("missing default file should fall back to defaults: %v", err)
	}
	if _, err := Load("elsewhere.yaml"); err == nil {
		t.Error("missing explicit file must fail")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MGCLI_REFERENCES_DIR": "/refs",
		"MGCLI_ENGINE":         "ffmpeg",
		"MGCLI_PYTHON":         "py -3",
		"MGCLI_FFMPEG":         "",
	}
	c := Default()
	c.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if c.ReferencesDir != "/refs" || c.Engine != "ffmpeg" || c.FFmpeg != "ffmpeg" {
		t.Errorf("ApplyEnv = %+v", c)
	}
	if len(c.Python) != 2 || c.Python[0] != "py" {
		t.Errorf("Python = %v", c.Python)
	}
}

func TestLoadExpandsHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	c, err := Load(writeConfig(t, "references_dir: ~/refs\npython: [~/venv/bin/python, -X, ~/not-a-path]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.ReferencesDir != "/home/tester/refs" {
		t.Errorf("ReferencesDir = %s", c.ReferencesDir)
	}
	if c.Python[0] != "/home/tester/venv/bin/python" {
		t.Errorf("Python[0] = %s", c.Python[0])
	}
	// only the interpreter is a path
	if c.Python[2] != "~/not-a-path" {
		t.Errorf("Python[2] = %s", c.Python[2])
	}
}

func TestLoadEngineTuning(t *testing.T) {
	c, err := Load(writeConfig(t, "ceiling: -0.5\npython_env: [MPLBACKEND=Agg, PYTHONWARNINGS=ignore]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Ceiling != -0.5 {
		t.Errorf("Ceiling = %v", c.Ceiling)
	}
	if strings.Join(c.PythonEnv, " ") != "MPLBACKEND=Agg PYTHONWARNINGS=ignore" {
		t.Errorf("PythonEnv = %v", c.PythonEnv)
	}

	d, err := Load(writeConfig(t, "engine: ffmpeg\n"))
	if err != nil {
		t.Fatal(err)
	}
	if d.Ceiling != -1.0 {
		t.Errorf("default Ceiling = %v", d.Ceiling)
	}
}

func TestLoadInvalidEngineTuning(t *testing.T) {
	for _, content := range []string{
		"ceiling: 0\n",
		"ceiling: 1.5\n",
		"ceiling: -12\n",
		"python_env: [MPLBACKEND]\n",
		"python_env: [=Agg]\n",
	} {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%q should be rejected", content)
		}
	}
}
