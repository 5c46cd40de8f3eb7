package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/symfony-cli/console"
	"golang.org/x/sync/errgroup"

	"github.com/dkarlovi/mgcli/audioinfo"
	"github.com/dkarlovi/mgcli/config"
	"github.com/dkarlovi/mgcli/preset"
)

const presetReaders = 4

func presetsCommand() *console.Command {
	return &console.Command{
		Name:  "presets",
		Usage: "List the presets found in the references directory",
		Description: `Every subdirectory of the references directory holding an audio file
(.mp3, .wav, .aac, .flac, .m4a) is a preset named after the subdirectory.
When a folder holds several files the first one in name order is used.`,
		Action: runPresets,
	}
}

type presetListing struct {
	preset.Preset
	Info *audioinfo.Info
	Tags audioinfo.Tags
}

func runPresets(c *console.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return console.Exit(fmt.Sprintf("Error reading config: %v", err), exitConfig)
	}
	catalog, err := preset.NewLoader(cfg.ReferencesDir).Catalog()
	if err != nil {
		return console.Exit(fmt.Sprintf("Error: %v", err), exitConfig)
	}
	listings, err := listPresets(context.Background(), catalog)
	if err != nil {
		return console.Exit(fmt.Sprintf("Error: %v", err), exitConfig)
	}
	printPresets(c.App.Writer, catalog.Root, listings)
	printSkipped(c.App.ErrWriter, catalog.Skipped)
	return nil
}

// listPresets reads format and tags of every preset file, a few at a time.
// Unreadable files are listed without details.
func listPresets(ctx context.Context, catalog *preset.Catalog) ([]presetListing, error) {
	listings := make([]presetListing, catalog.Len())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(presetReaders)
	for i, p := range catalog.Presets {
		listings[i].Preset = p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if info, err := audioinfo.Probe(p.Path); err == nil {
				listings[i].Info = info
			}
			if tags, err := audioinfo.ReadTags(p.Path); err == nil {
				listings[i].Tags = tags
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return listings, nil
}

func printPresets(w io.Writer, root string, listings []presetListing) {
	if len(listings) == 0 {
		fmt.Fprintf(w, "No presets in <comment>%s</>\n", root)
		return
	}
	fmt.Fprintf(w, "Presets in <comment>%s</>:\n", root)
	for _, l := range listings {
		fmt.Fprintf(w, "  <info>%s</>  %s", l.Name, filepath.Base(l.Path))
		if title := l.Tags.String(); title != "" {
			fmt.Fprintf(w, "  <fg=yellow>%s</>", title)
		}
		if l.Info != nil {
			fmt.Fprintf(w, "  (%s)", l.Info.Duration.Round(time.Second))
		}
		fmt.Fprintln(w)
	}
}

func printSkipped(w io.Writer, skipped []error) {
	for _, err := range skipped {
		fmt.Fprintf(w, "<warning>Skipped: %v</>\n", err)
	}
}
