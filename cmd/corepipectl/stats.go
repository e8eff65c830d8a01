package main

import (
	"flag"
	"fmt"

	"github.com/joeycumines/floater"

	"github.com/corepipeio/corepipe/internal/errs"
	"github.com/corepipeio/corepipe/store"
)

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	name := fs.String("name", "", "store name")
	path := fs.String("path", "", "store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *path == "" {
		return errs.NewInvalidArgument("name/path", "both are required")
	}
	stats, err := store.ComputeStats(*path, *name)
	if err != nil {
		return err
	}
	fmt.Printf("streams=%d messages=%d payloadBytes=%d\n", stats.StreamCount, stats.TotalMessageCount, stats.TotalPayloadBytes)
	for name, sm := range stats.PerStream {
		avgSize := floater.FormatDecimalRat(sm.AverageMessageSize(), 2, 0)
		avgLatency := floater.FormatDecimalRat(sm.AverageLatency(), 2, 0)
		fmt.Printf("  %s\tmessages=%d\tbytes=%d\tavgSize=%s\tavgLatencyTicks=%s\n",
			name, sm.MessageCount, sm.MessageSizeCumulativeSum, avgSize, avgLatency)
	}
	return nil
}
