package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kbukum/assetflow/dag"
)

// writeSummary prints every task of the run with its final status. Causes
// are printed in full regardless of the log level.
func writeSummary(w io.Writer, g *dag.Graph, res *dag.Result) {
	outcome := "succeeded"
	switch {
	case res.Cancelled:
		outcome = "cancelled"
	case !res.Success:
		outcome = "failed"
	}
	fmt.Fprintf(w, "assetflow: run %s %s in %s (%d tasks, %s records)\n",
		shortID(res.RunID), outcome, res.Duration.Round(time.Millisecond), len(res.Tasks), humanize.Comma(int64(res.Records())))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range g.Names() {
		rr, ok := res.Tasks[name]
		if !ok {
			continue
		}
		detail := fmt.Sprintf("%d records\t%s", rr.Records, rr.Duration.Round(time.Millisecond))
		if rr.Err != nil {
			detail = rr.Err.Error() + "\t"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", name, rr.Status, detail)
	}
	tw.Flush()
}

// writeList prints the registered tasks with their dependencies.
func writeList(w io.Writer, g *dag.Graph) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tDEPS\tDESCRIPTION")
	for _, t := range g.Tasks() {
		deps := strings.Join(t.Deps, ",")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, deps, t.Description)
	}
	tw.Flush()
}

// writeLevels prints the closure of targets as waves of tasks that would run
// in parallel.
func writeLevels(w io.Writer, g *dag.Graph, targets []string) error {
	if len(targets) == 0 {
		targets = g.Names()
	}
	closure, err := g.Closure(targets)
	if err != nil {
		return err
	}
	levels, err := g.LevelsOf(closure)
	if err != nil {
		return err
	}
	for i, level := range levels {
		fmt.Fprintf(w, "%d: %s\n", i+1, strings.Join(level, " "))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
