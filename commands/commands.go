package commands

import (
	"github.com/symfony-cli/console"
)

// Process exit codes.
const (
	exitOK          = 0
	exitConfig      = 1
	exitResolution  = 2
	exitEngine      = 3
	exitPostProcess = 4
)

func All() []*console.Command {
	return []*console.Command{
		masterCommand(),
		presetsCommand(),
	}
}
