package main

import (
	"flag"
	"strings"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/store"
)

type renameFlags store.RenameMap

func (r renameFlags) String() string {
	if r == nil {
		return ""
	}
	var parts []string
	for k, v := range r {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (r *renameFlags) Set(value string) error {
	old, newName, ok := strings.Cut(value, "=")
	if !ok {
		return errs.NewInvalidArgument("rename", "expected old=new, got "+value)
	}
	if *r == nil {
		*r = renameFlags{}
	}
	(*r)[old] = newName
	return nil
}

func runCopy(args []string) error {
	fs := flag.NewFlagSet("copy", flag.ExitOnError)
	srcName := fs.String("src-name", "", "source store name")
	srcPath := fs.String("src-path", "", "source store directory")
	dstName := fs.String("dst-name", "", "destination store name")
	dstPath := fs.String("dst-path", "", "destination store directory")
	var renames renameFlags
	fs.Var(&renames, "rename", "old=new stream rename, may be repeated")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *srcName == "" || *srcPath == "" || *dstName == "" || *dstPath == "" {
		return errs.NewInvalidArgument("src-name/src-path/dst-name/dst-path", "all are required")
	}
	if err := store.Copy(*srcPath, *srcName, *dstPath, *dstName, store.RenameMap(renames)); err != nil {
		return err
	}
	log.Info().Str(`src`, *srcName).Str(`dst`, *dstName).Log(`copy complete`)
	return nil
}
