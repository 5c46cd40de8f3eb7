package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/symfony-cli/console"

	"github.com/dkarlovi/mgcli/commands"
	"github.com/dkarlovi/mgcli/config"
)

var (
	// version is overridden at linking time
	version = "dev"
	// buildDate is overridden at linking time
	buildDate string
)

func main() {
	// MGCLI_* overrides may live in a .env file
	_ = godotenv.Load()

	app := &console.Application{
		Name:        "mgcli",
		Usage:       "Master audio tracks against a reference track or preset",
		Description: "Matches the sound of a target track to a reference track (or a named preset from the references directory) using the matchering library, or a loudness-only ffmpeg fallback.",
		Version:     version,
		BuildDate:   buildDate,
		Channel:     "stable",
		Flags: []console.Flag{
			&console.StringFlag{
				Name:         "config",
				Aliases:      []string{"c"},
				DefaultValue: config.DefaultFile,
				Usage:        "Path to config YAML file",
			},
		},
		Commands: commands.All(),
	}

	app.Run(os.Args)
}
