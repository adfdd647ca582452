package main

import (
	"github.com/jessevdk/go-flags"

	"go.ircservices.dev/core/cmd/svcctl/svcctlcmd"
	mbp "go.ircservices.dev/core/mainboilerplate"
)

const iniFilename = "svcctl.ini"

func main() {
	var parser = flags.NewParser(svcctlcmd.Config, flags.Default)

	mbp.AddPrintConfigCmd(parser, iniFilename)

	parser.LongDescription = `svcctl is a tool for inspecting and editing objects stored by the services daemon.

	See --help pages of each sub-command for documentation and usage examples.
	Optionally configure svcctl with a '` + iniFilename + `' file in the current working directory,
	or with '~/.config/ircservices/` + iniFilename + `'. Keys are namespaced by their section,
	as in '[Database]' followed by 'database.engine = postgres'. Use the 'print-config' sub-command
	to inspect the tool's current configuration.
	`

	// Add all registered commands to the root parser.Command
	mbp.Must(svcctlcmd.CommandRegistry.AddCommands("", parser.Command, true), "could not add subcommand")

	// Parse config and start app
	mbp.MustParseConfig(parser, iniFilename)
}
