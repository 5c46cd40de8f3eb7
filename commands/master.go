package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/symfony-cli/console"

	"github.com/dkarlovi/mgcli/audioinfo"
	"github.com/dkarlovi/mgcli/config"
	"github.com/dkarlovi/mgcli/engine"
	"github.com/dkarlovi/mgcli/logging"
	"github.com/dkarlovi/mgcli/postprocess"
	"github.com/dkarlovi/mgcli/preset"
	"github.com/dkarlovi/mgcli/result"
)

func masterCommand() *console.Command {
	return &console.Command{
		Name:  "master",
		Usage: "Master a target track so it sounds like a reference track",
		Description: `The reference is either an audio file or the name of a preset: a folder
under the references directory holding one audio file (see the presets command).
Preset names are matched case-insensitively; an existing file always wins.

--dont_normalize only has an effect together with --no_limiter. Without both the
limiter and normalization the result can clip unless --bit 32 is used.

A failed mastering exits with status 3 and a failed --m4a or --del_target step
with status 4. Pass --exit_zero to always exit with status 0 once arguments are
valid, as earlier releases did.`,
		Args: console.ArgDefinition{
			{Name: "target", Description: "Audio file to master"},
			{Name: "reference", Description: "Reference audio file or preset name"},
			{Name: "result", Description: "Where to write the mastered audio"},
		},
		Flags: []console.Flag{
			&console.IntFlag{
				Name:         "bit",
				Aliases:      []string{"b"},
				DefaultValue: 16,
				Usage:        "Bit depth of the result: 16, 24 or 32 (32-bit float)",
			},
			&console.StringFlag{
				Name:  "log",
				Usage: "Also write the log to this file",
			},
			&console.BoolFlag{
				Name:  "no_limiter",
				Usage: "Disable the limiter at the final stage",
			},
			&console.BoolFlag{
				Name:  "dont_normalize",
				Usage: "Disable normalization when --no_limiter is set (may clip unless --bit 32)",
			},
			&console.BoolFlag{
				Name:  "m4a",
				Usage: "Convert the result to m4a and remove the intermediate file",
			},
			&console.BoolFlag{
				Name:  "del_target",
				Usage: "Delete the target file after a successful mastering",
			},
			&console.StringFlag{
				Name:  "engine",
				Usage: "Mastering engine: matchering or ffmpeg (default from config)",
			},
			&console.BoolFlag{
				Name:  "exit_zero",
				Usage: "Exit with status 0 even when mastering or post-processing fails",
			},
		},
		Action: runMaster,
	}
}

type masterOptions struct {
	Target        string
	Reference     string
	Result        string
	Bits          int
	Log           string
	Engine        string
	NoLimiter     bool
	DontNormalize bool
	ToM4A         bool
	DeleteTarget  bool
	ExitZero      bool
}

type runConfig struct {
	target       string
	reference    string
	result       result.Spec
	logFile      string
	engine       string
	toM4A        bool
	deleteTarget bool
	exitZero     bool
}

func runMaster(c *console.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return console.Exit(fmt.Sprintf("Error reading config: %v", err), exitConfig)
	}

	opts := masterOptions{
		Target:        c.Args().Get("target"),
		Reference:     c.Args().Get("reference"),
		Result:        c.Args().Get("result"),
		Bits:          c.Int("bit"),
		Log:           c.String("log"),
		Engine:        c.String("engine"),
		NoLimiter:     c.Bool("no_limiter"),
		DontNormalize: c.Bool("dont_normalize"),
		ToM4A:         c.Bool("m4a"),
		DeleteTarget:  c.Bool("del_target"),
		ExitZero:      c.Bool("exit_zero"),
	}
	if opts.Log == "" {
		opts.Log = cfg.Log
	}
	if opts.Engine == "" {
		opts.Engine = cfg.Engine
	}

	rc, err := opts.runConfig(preset.NewLoader(cfg.ReferencesDir))
	if err != nil {
		return console.Exit(resolutionMessage(err), exitResolution)
	}

	eng, err := engine.New(rc.engine, engine.Options{
		Python:    cfg.Python,
		PythonEnv: cfg.PythonEnv,
		FFmpeg:    cfg.FFmpeg,
		Ceiling:   cfg.Ceiling,
	})
	if err != nil {
		return console.Exit(fmt.Sprintf("Error: %v", err), exitConfig)
	}

	log, closer, err := logging.New(os.Stdout, rc.logFile)
	if err != nil {
		return console.Exit(fmt.Sprintf("Error: %v", err), exitConfig)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	converter := postprocess.Converter{FFmpeg: cfg.FFmpeg, Bitrate: cfg.M4ABitrate}
	if code := exitCode(master(ctx, rc, eng, converter, log), rc.exitZero); code != exitOK {
		return console.Exit("", code)
	}
	return nil
}

func resolutionMessage(err error) string {
	msg := fmt.Sprintf("Error: %v", err)
	var resErr *preset.ResolutionError
	if errors.As(err, &resErr) {
		if len(resErr.Available) > 0 {
			msg += fmt.Sprintf("\nAvailable presets: <info>%s</>", strings.Join(resErr.Available, "</>, <info>"))
		} else {
			msg += "\nNo presets found, check references_dir in the config"
		}
	}
	return msg
}

func (o masterOptions) runConfig(refs *preset.Loader) (runConfig, error) {
	if o.Target == "" || o.Reference == "" || o.Result == "" {
		return runConfig{}, errors.New("target, reference and result are required")
	}
	spec, err := result.NewSpec(o.Result, o.Bits, !o.NoLimiter, !o.DontNormalize)
	if err != nil {
		return runConfig{}, err
	}
	reference, err := refs.Resolve(o.Reference)
	if err != nil {
		return runConfig{}, err
	}
	return runConfig{
		target:       o.Target,
		reference:    reference,
		result:       spec,
		logFile:      o.Log,
		engine:       o.Engine,
		toM4A:        o.ToM4A,
		deleteTarget: o.DeleteTarget,
		exitZero:     o.ExitZero,
	}, nil
}

type converter interface {
	ToM4A(ctx context.Context, path string) (string, error)
}

// master runs the engine and the post-processing steps and returns the exit code.
func master(ctx context.Context, rc runConfig, eng engine.Engine, conv converter, log zerolog.Logger) int {
	log.Debug().Msgf("Engine: %s", eng.Name())
	logProbe(log, "Target", rc.target)
	logProbe(log, "Reference", rc.reference)
	if rc.result.Clipping() {
		log.Warn().Msg("Limiter and normalization are disabled, the result may clip unless --bit 32 is used")
	}

	job := engine.Job{
		Target:    rc.target,
		Reference: rc.reference,
		Results:   []result.Spec{rc.result},
	}
	if err := eng.Process(ctx, job, logging.NewSink(log)); err != nil {
		log.Error().Stack().Err(err).Msg("Got an error while mastering")
		return exitEngine
	}
	log.Info().Msgf("Mastered %s", rc.result.Path)
	if info, err := audioinfo.Probe(rc.result.Path); err == nil {
		log.Info().Msgf("Result: %s", info)
	}

	if err := postProcess(ctx, rc, conv, log); err != nil {
		return exitPostProcess
	}
	return exitOK
}

func postProcess(ctx context.Context, rc runConfig, conv converter, log zerolog.Logger) error {
	var errs *multierror.Error
	if rc.toM4A {
		if out, err := conv.ToM4A(ctx, rc.result.Path); err != nil {
			log.Error().Err(err).Msg("Converting the result to m4a failed")
			errs = multierror.Append(errs, err)
		} else {
			log.Info().Msgf("Converted the result to %s", out)
		}
	}
	if rc.deleteTarget {
		if err := postprocess.DeleteTarget(rc.target); err != nil {
			log.Error().Err(err).Msg("Deleting the target failed")
			errs = multierror.Append(errs, err)
		} else {
			log.Info().Msgf("Deleted the target %s", rc.target)
		}
	}
	return errs.ErrorOrNil()
}

func logProbe(log zerolog.Logger, label, path string) {
	info, err := audioinfo.Probe(path)
	if err != nil {
		log.Debug().Msgf("%s: %s (%v)", label, path, err)
		return
	}
	log.Debug().Msgf("%s: %s (%s)", label, path, info)
}

// exitCode maps failures to status 0 when the user asked for it.
func exitCode(code int, exitZero bool) int {
	if exitZero && (code == exitEngine || code == exitPostProcess) {
		return exitOK
	}
	return code
}
