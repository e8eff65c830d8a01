package main

import (
	"flag"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/store"
)

func runRepair(args []string) error {
	fs := flag.NewFlagSet("repair", flag.ExitOnError)
	name := fs.String("name", "", "store name")
	path := fs.String("path", "", "store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *path == "" {
		return errs.NewInvalidArgument("name/path", "both are required")
	}
	if err := store.Repair(*path, *name); err != nil {
		return err
	}
	log.Info().Str(`name`, *name).Log(`repair complete`)
	return nil
}
