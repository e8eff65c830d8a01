package main

import (
	"flag"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/store"
)

func runCrop(args []string) error {
	fs := flag.NewFlagSet("crop", flag.ExitOnError)
	srcName := fs.String("src-name", "", "source store name")
	srcPath := fs.String("src-path", "", "source store directory")
	dstName := fs.String("dst-name", "", "destination store name")
	dstPath := fs.String("dst-path", "", "destination store directory")
	from := fs.Int64("from", 0, "originatingTime lower bound (ticks, inclusive)")
	to := fs.Int64("to", 0, "originatingTime upper bound (ticks, inclusive)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *srcName == "" || *srcPath == "" || *dstName == "" || *dstPath == "" {
		return errs.NewInvalidArgument("src-name/src-path/dst-name/dst-path", "all are required")
	}
	interval := ptime.NewInterval(ptime.Time(*from), true, ptime.Time(*to), true)
	if err := store.Crop(*srcPath, *srcName, *dstPath, *dstName, nil, interval); err != nil {
		return err
	}
	log.Info().Str(`src`, *srcName).Str(`dst`, *dstName).Log(`crop complete`)
	return nil
}
