package main

import (
	"flag"
	"fmt"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/store"
)

func runListStreams(args []string) error {
	fs := flag.NewFlagSet("list-streams", flag.ExitOnError)
	name := fs.String("name", "", "store name")
	path := fs.String("path", "", "store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *path == "" {
		return errs.NewInvalidArgument("name/path", "both are required")
	}
	streams, err := store.ListStreams(*path, *name)
	if err != nil {
		return err
	}
	for _, sm := range streams {
		fmt.Printf("%d\t%s\t%s\tmessages=%d\n", sm.ID, sm.Name, sm.TypeName, sm.MessageCount)
	}
	return nil
}
