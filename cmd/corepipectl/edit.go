package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/store"
)

// runEdit applies an edit script to a store, writing the result to a new
// destination store (spec §4.5 Edit). Each non-blank, non-comment line of
// the script is tab-separated: <stream> <insert|update|delete>
// <originatingTime ticks> [hex-encoded payload].
func runEdit(args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	srcName := fs.String("src-name", "", "source store name")
	srcPath := fs.String("src-path", "", "source store directory")
	dstName := fs.String("dst-name", "", "destination store name")
	dstPath := fs.String("dst-path", "", "destination store directory")
	scriptPath := fs.String("script", "", "path to the edit script")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *srcName == "" || *srcPath == "" || *dstName == "" || *dstPath == "" || *scriptPath == "" {
		return errs.NewInvalidArgument("src-name/src-path/dst-name/dst-path/script", "all are required")
	}

	edits, err := parseEditScript(*scriptPath)
	if err != nil {
		return err
	}

	if err := store.Edit(*srcPath, *srcName, *dstPath, *dstName, nil, edits); err != nil {
		return err
	}
	log.Info().Str(`src`, *srcName).Str(`dst`, *dstName).Log(`edit complete`)
	return nil
}

func parseEditScript(path string) (map[string][]store.EditOp, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.NewStoreIntegrity("opening edit script", err)
	}
	defer f.Close()

	edits := make(map[string][]store.EditOp)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, errs.NewInvalidArgument("script", fmt.Sprintf("line %d: expected at least 3 tab-separated fields", lineNo))
		}
		streamName := fields[0]
		ticks, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, errs.NewInvalidArgument("script", fmt.Sprintf("line %d: invalid originatingTime: %v", lineNo, err))
		}
		op := store.EditOp{OriginatingTime: ptime.Time(ticks)}
		switch fields[1] {
		case "insert":
			op.Kind = store.EditInsert
		case "update":
			op.Kind = store.EditUpdate
		case "delete":
			op.Kind = store.EditDelete
		default:
			return nil, errs.NewInvalidArgument("script", fmt.Sprintf("line %d: unknown op %q", lineNo, fields[1]))
		}
		if len(fields) > 3 && fields[3] != "" {
			payload, err := hex.DecodeString(fields[3])
			if err != nil {
				return nil, errs.NewInvalidArgument("script", fmt.Sprintf("line %d: invalid hex payload: %v", lineNo, err))
			}
			op.Payload = payload
		}
		edits[streamName] = append(edits[streamName], op)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.NewStoreIntegrity("reading edit script", err)
	}
	return edits, nil
}
