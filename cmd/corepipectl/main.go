// Command corepipectl operates on corepipe stores from the command line:
// copy, crop, edit, repair, list-streams, and stats (SPEC_FULL §4), each
// exiting 0 on success and non-zero on failure (spec §6).
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/logiface"

	"github.com/corepipeio/corepipe/internal/telemetry"
)

var log = telemetry.New(os.Stderr, logiface.LevelInformational)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "copy":
		err = runCopy(os.Args[2:])
	case "crop":
		err = runCrop(os.Args[2:])
	case "edit":
		err = runEdit(os.Args[2:])
	case "repair":
		err = runRepair(os.Args[2:])
	case "list-streams":
		err = runListStreams(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "corepipectl: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Err().Str(`subcommand`, os.Args[1]).Err(err).Log(`subcommand failed`)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: corepipectl <subcommand> [flags]

subcommands:
  copy          -src-name -src-path -dst-name -dst-path [-rename old=new ...]
  crop          -src-name -src-path -dst-name -dst-path -from -to
  edit          -src-name -src-path -dst-name -dst-path -script <path-to-edit-script>
  repair        -name -path
  list-streams  -name -path
  stats         -name -path`)
}
